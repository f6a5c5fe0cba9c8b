package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk_backend/internal/directory"
	"helpdesk_backend/internal/notification/outbox"
	"helpdesk_backend/internal/notification/templates"
	"helpdesk_backend/platform/config"
	"helpdesk_backend/platform/logger"
)

type fakeStats map[uuid.UUID]Stats

func (f fakeStats) Stats(_ context.Context, org uuid.UUID, _ Period) (Stats, error) {
	s, ok := f[org]
	if !ok {
		return Stats{}, errors.New("stats unavailable")
	}
	return s, nil
}

type fakeDirectory struct {
	orgs   []uuid.UUID
	admins map[uuid.UUID][]directory.Member
}

func (f fakeDirectory) Organizations(context.Context) ([]uuid.UUID, error) { return f.orgs, nil }

func (f fakeDirectory) Admins(_ context.Context, org uuid.UUID) ([]directory.Member, error) {
	return f.admins[org], nil
}

type sink struct {
	params []outbox.InsertParams
}

func (s *sink) InsertMany(_ context.Context, params []outbox.InsertParams) ([]uuid.UUID, error) {
	s.params = append(s.params, params...)
	return make([]uuid.UUID, len(params)), nil
}

type noTemplates struct{}

func (noTemplates) Resolve(context.Context, uuid.UUID, string, string) (templates.Template, error) {
	return templates.Template{}, templates.ErrNotFound
}

type memArchive struct {
	keys []string
	err  error
}

func (a *memArchive) Put(_ context.Context, org uuid.UUID, p Period, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.keys = append(a.keys, archiveKey(org, p))
	return "https://files.example.com/" + archiveKey(org, p), nil
}

func TestPreviousDay(t *testing.T) {
	p := PreviousDay(time.Date(2026, 3, 2, 0, 30, 0, 0, time.FixedZone("CET", 3600)))

	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), p.End)
	assert.Equal(t, "2026-02-28", p.Label())
}

func TestDefaultReportScheduleCoversEveryDay(t *testing.T) {
	schedule, err := cron.ParseStandard(config.DefaultReportCron)
	require.NoError(t, err)

	run := schedule.Next(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	prev := PreviousDay(run)
	for i := 0; i < 14; i++ {
		next := schedule.Next(run)
		period := PreviousDay(next)
		require.Equal(t, prev.End, period.Start, "run at %s leaves a gap", next)
		require.Equal(t, next.Sub(run), period.End.Sub(period.Start))
		run, prev = next, period
	}
}

func TestRunQueuesReportPerAdmin(t *testing.T) {
	org := uuid.New()
	quiet := uuid.New()
	broken := uuid.New()
	admin1 := directory.Member{UserID: uuid.New(), Email: "a@example.com", Role: directory.RoleAdmin}
	admin2 := directory.Member{UserID: uuid.New(), Email: "b@example.com", Role: directory.RoleAdmin}
	out := &sink{}
	archive := &memArchive{}

	s := NewScheduler(Deps{
		Stats: fakeStats{org: {
			Created:          12,
			Resolved:         9,
			Open:             4,
			Breached:         1,
			AvgFirstResponse: 95 * time.Minute,
			HasFirstResponse: true,
			ByPriority:       []PriorityCount{{Label: "HIGH", Count: 3}, {Label: "LOW", Count: 1}},
		}},
		Directory: fakeDirectory{
			orgs: []uuid.UUID{org, quiet, broken},
			admins: map[uuid.UUID][]directory.Member{
				org:    {admin1, admin2},
				broken: {admin1},
			},
		},
		Notifications: out,
		Templates:     noTemplates{},
		Archive:       archive,
		Log:           logger.Discard(),
	})
	s.now = func() time.Time { return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) }

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", res.Period)
	assert.Equal(t, 3, res.Organizations)
	assert.Equal(t, 1, res.Reports)
	assert.Equal(t, 2, res.Notified)
	assert.Equal(t, 1, res.Failed)

	require.Len(t, out.params, 2)
	first := out.params[0]
	assert.Equal(t, "a@example.com", first.RecipientEmail)
	assert.Equal(t, outbox.ChannelEmail, first.Channel)
	assert.Equal(t, EventReport, first.EventType)
	assert.Equal(t, "Helpdesk report for 2026-03-01", first.Subject)
	assert.Contains(t, first.Body, "1h 35m")
	assert.Contains(t, first.Body, "HIGH")
	assert.Nil(t, first.TemplateData)
	assert.Equal(t, []string{org.String() + "/2026-03-01.html"}, archive.keys)
}

func TestRunReferencesTemplateWithArchiveLink(t *testing.T) {
	org := uuid.New()
	templateID := uuid.New()
	out := &sink{}

	s := NewScheduler(Deps{
		Stats:         fakeStats{org: {}},
		Directory:     fakeDirectory{orgs: []uuid.UUID{org}, admins: map[uuid.UUID][]directory.Member{org: {{UserID: uuid.New(), Email: "a@example.com"}}}},
		Notifications: out,
		Templates:     staticTemplate{id: templateID},
		Archive:       &memArchive{},
		Log:           logger.Discard(),
	})

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.params, 1)

	data := out.params[0].TemplateData
	require.NotNil(t, data)
	assert.Equal(t, templateID, *data.TemplateID)
	report := data.Variables["report"].(map[string]any)
	assert.Equal(t, "n/a", report["avgFirstResponse"])
	assert.Contains(t, report["archiveUrl"], "https://files.example.com/")
}

func TestRunSurvivesArchiveFailure(t *testing.T) {
	org := uuid.New()
	out := &sink{}
	s := NewScheduler(Deps{
		Stats:         fakeStats{org: {}},
		Directory:     fakeDirectory{orgs: []uuid.UUID{org}, admins: map[uuid.UUID][]directory.Member{org: {{UserID: uuid.New(), Email: "a@example.com"}}}},
		Notifications: out,
		Templates:     noTemplates{},
		Archive:       &memArchive{err: errors.New("bucket missing")},
		Log:           logger.Discard(),
	})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reports)
	assert.Len(t, out.params, 1)
}

type staticTemplate struct {
	id uuid.UUID
}

func (t staticTemplate) Resolve(context.Context, uuid.UUID, string, string) (templates.Template, error) {
	return templates.Template{ID: t.id}, nil
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "n/a", formatDuration(0, false))
	assert.Equal(t, "0m", formatDuration(20*time.Second, true))
	assert.Equal(t, "45m", formatDuration(45*time.Minute, true))
	assert.Equal(t, "26h 05m", formatDuration(26*time.Hour+5*time.Minute, true))
}
