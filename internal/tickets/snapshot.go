// Package tickets exposes the read-only ticket view that automation runs against
// and the one mutation it is allowed to make (tags).
package tickets

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the state of a ticket at the moment an event fired.
type Snapshot struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	Number         int64      `json:"number"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	Category       string     `json:"category"`
	Channel        string     `json:"channel"`
	RequesterID    *uuid.UUID `json:"requesterId,omitempty"`
	AssigneeID     *uuid.UUID `json:"assigneeId,omitempty"`
	Tags           []string   `json:"tags"`
	DueAt          *time.Time `json:"dueAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// FieldValue returns the string form of a ticket field. Names match the JSON
// names case-insensitively and snake_case works too. Unknown or unset fields
// yield "".
func (s Snapshot) FieldValue(field string) string {
	switch normalizeField(field) {
	case "id":
		return s.ID.String()
	case "organizationid":
		return s.OrganizationID.String()
	case "number":
		return strconv.FormatInt(s.Number, 10)
	case "title":
		return s.Title
	case "description":
		return s.Description
	case "status":
		return s.Status
	case "priority":
		return s.Priority
	case "category":
		return s.Category
	case "channel":
		return s.Channel
	case "requesterid":
		return uuidString(s.RequesterID)
	case "assigneeid":
		return uuidString(s.AssigneeID)
	case "tags":
		return strings.Join(s.Tags, ",")
	case "dueat":
		if s.DueAt == nil {
			return ""
		}
		return s.DueAt.UTC().Format(time.RFC3339)
	}
	return ""
}

// HasTag reports whether tag is already on the ticket.
func (s Snapshot) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TemplateData is the render payload notifications about this ticket use,
// addressed as {{ticket.title}}, {{ticket.priority}} and so on.
func (s Snapshot) TemplateData() map[string]any {
	ticket := map[string]any{
		"id":          s.ID.String(),
		"number":      s.Number,
		"title":       s.Title,
		"description": s.Description,
		"status":      s.Status,
		"priority":    s.Priority,
		"category":    s.Category,
		"channel":     s.Channel,
		"tags":        strings.Join(s.Tags, ", "),
	}
	if s.DueAt != nil {
		ticket["dueAt"] = s.DueAt.UTC().Format(time.RFC3339)
	}
	return map[string]any{"ticket": ticket}
}

func normalizeField(field string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(field), "_", ""))
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
