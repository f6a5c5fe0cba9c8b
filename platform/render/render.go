// Package render substitutes {{path.to.key}} placeholders in notification templates.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var placeholderPattern = regexp.MustCompile(`{{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*}}`)

// Text replaces every placeholder whose path resolves in data. Keys match
// case-insensitively when no exact key exists. Unresolved placeholders are
// left exactly as written.
func Text(tpl string, data map[string]any) string {
	return substitute(tpl, data, false)
}

// HTML is Text with substituted values HTML-escaped. The template itself is not touched.
func HTML(tpl string, data map[string]any) string {
	return substitute(tpl, data, true)
}

// Placeholders lists the distinct paths referenced by tpl in order of first use.
func Placeholders(tpl string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(tpl, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// Join concatenates the non-empty parts separated by one blank line.
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, "\n\n")
}

func substitute(tpl string, data map[string]any, escape bool) string {
	if tpl == "" || !strings.Contains(tpl, "{{") {
		return tpl
	}
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		value, ok := Lookup(data, sub[1])
		if !ok {
			return match
		}
		text := stringify(value)
		if escape {
			return html.EscapeString(text)
		}
		return text
	})
}

// Lookup walks a dotted path through nested maps.
func Lookup(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, segment := range strings.Split(path, ".") {
		next, ok := findKey(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func findKey(current any, key string) (any, bool) {
	var m map[string]any
	switch typed := current.(type) {
	case map[string]any:
		m = typed
	case map[string]string:
		m = make(map[string]any, len(typed))
		for k, v := range typed {
			m[k] = v
		}
	default:
		return nil, false
	}

	if value, ok := m[key]; ok {
		return value, true
	}
	for candidate, value := range m {
		if strings.EqualFold(candidate, key) {
			return value, true
		}
	}
	return nil, false
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
