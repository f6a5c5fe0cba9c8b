// Package redact removes credentials from text before it is logged or stored.
package redact

import (
	"regexp"
	"strings"
)

const mask = "[REDACTED]"

var (
	authHeaderRegex  = regexp.MustCompile(`(?i)\b(bearer|basic|zoho-oauthtoken)\s+[A-Za-z0-9\-._~+/=:]+`)
	keyValueRegex    = regexp.MustCompile(`(?i)("?(?:api[_-]?key|access[_-]?token|api_access_token|auth[_-]?token|token|password|passwd|secret|client[_-]?secret)"?\s*[:=]\s*)("[^"]*"|[^\s,&;}]+)`)
	urlUserinfoRegex = regexp.MustCompile(`(?i)\b(https?|smtps?)://[^/\s:@]+:[^/\s@]+@`)
)

var sensitiveKeys = []string{
	"password", "secret", "token", "apikey", "api_key", "api-key", "authorization", "auth",
}

// Secrets masks bearer/basic credentials, key=value and "key":"value" secrets
// and URL userinfo in free text such as provider error bodies.
func Secrets(s string) string {
	if s == "" {
		return s
	}
	out := authHeaderRegex.ReplaceAllString(s, "$1 "+mask)
	out = keyValueRegex.ReplaceAllStringFunc(out, func(match string) string {
		parts := keyValueRegex.FindStringSubmatch(match)
		value := parts[2]
		if strings.HasPrefix(value, `"`) {
			return parts[1] + `"` + mask + `"`
		}
		return parts[1] + mask
	})
	out = urlUserinfoRegex.ReplaceAllString(out, "$1://"+mask+"@")
	return out
}

// Error returns the redacted message of err, or "" for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Secrets(err.Error())
}

// Truncate redacts s and cuts it to at most max bytes on a rune boundary.
func Truncate(s string, max int) string {
	out := Secrets(s)
	if max <= 0 || len(out) <= max {
		return out
	}
	cut := max
	for cut > 0 && !isRuneStart(out[cut]) {
		cut--
	}
	return out[:cut] + "…"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Map returns a copy of m with values under sensitive keys masked, recursing
// into nested maps and slices. Used for request/response snapshots.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsSensitiveKey(k) {
			out[k] = mask
			continue
		}
		out[k] = value(v)
	}
	return out
}

func value(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return Map(typed)
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = value(item)
		}
		return items
	case string:
		return Secrets(typed)
	default:
		return v
	}
}

// IsSensitiveKey reports whether a field name looks like it carries a credential.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Email masks an address for logs: "user@example.com" -> "u***@example.com".
func Email(email string) string {
	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return "***"
	}
	local := parts[0]
	if len(local) <= 1 {
		return local + "***@" + parts[1]
	}
	return string(local[0]) + "***@" + parts[1]
}

// Phone keeps the last three digits.
func Phone(p string) string {
	if len(p) <= 3 {
		return "***"
	}
	return "***" + p[len(p)-3:]
}
