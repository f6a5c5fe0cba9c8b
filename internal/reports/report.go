// Package reports computes per-organization helpdesk statistics and queues
// them as email reports to organization admins.
package reports

import (
	"fmt"
	"time"
)

// EventReport is the notification event_type of report emails.
const EventReport = "DAILY_REPORT"

// Period is a half-open [Start, End) interval.
type Period struct {
	Start time.Time
	End   time.Time
}

// PreviousDay is the UTC calendar day before now.
func PreviousDay(now time.Time) Period {
	u := now.UTC()
	end := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return Period{Start: end.AddDate(0, 0, -1), End: end}
}

func (p Period) Label() string { return p.Start.Format(time.DateOnly) }

type PriorityCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats are the aggregates of one organization over one period.
type Stats struct {
	Created             int
	Resolved            int
	Open                int
	Breached            int
	AvgFirstResponse    time.Duration
	HasFirstResponse    bool
	NotificationsSent   int
	NotificationsFailed int
	ByPriority          []PriorityCount
}

// view is the data of the report.html template.
type view struct {
	Title               string
	PeriodStart         string
	PeriodEnd           string
	Created             int
	Resolved            int
	Open                int
	Breached            int
	AvgFirstResponse    string
	NotificationsSent   int
	NotificationsFailed int
	ByPriority          []PriorityCount
}

func newView(p Period, s Stats) view {
	return view{
		Title:               "Helpdesk report for " + p.Label(),
		PeriodStart:         p.Start.Format(time.RFC3339),
		PeriodEnd:           p.End.Format(time.RFC3339),
		Created:             s.Created,
		Resolved:            s.Resolved,
		Open:                s.Open,
		Breached:            s.Breached,
		AvgFirstResponse:    formatDuration(s.AvgFirstResponse, s.HasFirstResponse),
		NotificationsSent:   s.NotificationsSent,
		NotificationsFailed: s.NotificationsFailed,
		ByPriority:          s.ByPriority,
	}
}

// variables exposes the report to organization templates as {{report.*}}.
func (v view) variables() map[string]any {
	byPriority := make(map[string]any, len(v.ByPriority))
	for _, p := range v.ByPriority {
		byPriority[p.Label] = p.Count
	}
	return map[string]any{
		"report": map[string]any{
			"title":               v.Title,
			"periodStart":         v.PeriodStart,
			"periodEnd":           v.PeriodEnd,
			"created":             v.Created,
			"resolved":            v.Resolved,
			"open":                v.Open,
			"breached":            v.Breached,
			"avgFirstResponse":    v.AvgFirstResponse,
			"notificationsSent":   v.NotificationsSent,
			"notificationsFailed": v.NotificationsFailed,
			"byPriority":          byPriority,
		},
	}
}

func formatDuration(d time.Duration, ok bool) string {
	if !ok {
		return "n/a"
	}
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}
