package relance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/amicale/amicale/internal/shared"
)

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memoryRelanceStore struct {
	config   *Config
	lateDues []LateDue
	lastCut  time.Time
}

func (s *memoryRelanceStore) GetConfig(ctx context.Context) (*Config, error) {
	if s.config == nil {
		return nil, shared.ErrNotFound
	}
	copied := *s.config
	return &copied, nil
}

func (s *memoryRelanceStore) SaveConfig(ctx context.Context, cfg Config) error {
	s.config = &cfg
	return nil
}

func (s *memoryRelanceStore) ListLateDues(ctx context.Context, dueBefore time.Time) ([]LateDue, error) {
	s.lastCut = dueBefore
	var out []LateDue
	for _, d := range s.lateDues {
		if d.DueDate.Before(dueBefore) {
			out = append(out, d)
		}
	}
	return out, nil
}

type recordingMailer struct {
	sent []struct{ to, subject, body string }
}

func (m *recordingMailer) EnqueueEmail(ctx context.Context, to, subject, body string) error {
	m.sent = append(m.sent, struct{ to, subject, body string }{to, subject, body})
	return nil
}

func newTestService(store *memoryRelanceStore, mailer Mailer) *Service {
	svc := NewService(store, mailer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time { return fixedNow })
	return svc
}

func TestConfigDefaultsWhenMissing(t *testing.T) {
	svc := newTestService(&memoryRelanceStore{}, &recordingMailer{})

	cfg, err := svc.Config(context.Background())
	require.NoError(t, err)
	require.False(t, cfg.Enabled)
	require.Equal(t, 7, cfg.DelayDays)
}

func TestUpdatePersistsConfig(t *testing.T) {
	store := &memoryRelanceStore{}
	svc := newTestService(store, &recordingMailer{})

	require.Error(t, svc.Update(context.Background(), Config{DelayDays: -1}))

	require.NoError(t, svc.Update(context.Background(), Config{Enabled: true, DelayDays: 3}))
	cfg, err := svc.Config(context.Background())
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
	require.Equal(t, 3, cfg.DelayDays)
	// Blank subject and template fall back to defaults.
	require.Equal(t, DefaultConfig().Subject, cfg.Subject)
	require.NotEmpty(t, cfg.BodyTemplate)
}

func TestScanDisabledSendsNothing(t *testing.T) {
	store := &memoryRelanceStore{
		lateDues: []LateDue{{AdherentID: 1, Email: "a@ex.fr", DueDate: fixedNow.AddDate(0, -1, 0), Remaining: dec("10")}},
	}
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	reminders, err := svc.Scan(context.Background())
	require.NoError(t, err)
	require.Empty(t, reminders)
	require.Empty(t, mailer.sent)
}

func TestScanGroupsPerAdherent(t *testing.T) {
	store := &memoryRelanceStore{
		config: &Config{Enabled: true, DelayDays: 7, Subject: "Rappel", BodyTemplate: "Bonjour {prenom}, {montant} restent dus."},
		lateDues: []LateDue{
			{AdherentID: 1, FirstName: "Awa", LastName: "Diallo", Email: "awa@ex.fr", Year: 2025, Month: 4, Remaining: dec("10"), DueDate: fixedNow.AddDate(0, -2, 0)},
			{AdherentID: 1, FirstName: "Awa", LastName: "Diallo", Email: "awa@ex.fr", Year: 2025, Month: 5, Remaining: dec("10"), DueDate: fixedNow.AddDate(0, -1, 0)},
			{AdherentID: 2, FirstName: "Moussa", LastName: "Ba", Email: "moussa@ex.fr", Year: 2025, Month: 5, Remaining: dec("12.50"), DueDate: fixedNow.AddDate(0, -1, 0)},
		},
	}
	mailer := &recordingMailer{}
	svc := newTestService(store, mailer)

	reminders, err := svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, reminders, 2)

	require.Equal(t, int64(1), reminders[0].AdherentID)
	require.Equal(t, 2, reminders[0].Periods)
	require.True(t, reminders[0].Total.Equal(dec("20")))
	require.Contains(t, reminders[0].Body, "Awa")
	require.Contains(t, reminders[0].Body, "20.00")

	require.Len(t, mailer.sent, 2)
	require.Equal(t, "awa@ex.fr", mailer.sent[0].to)
	require.Equal(t, "Rappel", mailer.sent[0].subject)
}

func TestScanHonoursDelay(t *testing.T) {
	store := &memoryRelanceStore{
		config: &Config{Enabled: true, DelayDays: 7, Subject: "Rappel", BodyTemplate: "x"},
		lateDues: []LateDue{
			// Due two days ago, inside the grace delay.
			{AdherentID: 1, Email: "a@ex.fr", Remaining: dec("10"), DueDate: fixedNow.AddDate(0, 0, -2)},
			// Due ten days ago, past the delay.
			{AdherentID: 2, Email: "b@ex.fr", Remaining: dec("10"), DueDate: fixedNow.AddDate(0, 0, -10)},
		},
	}
	svc := newTestService(store, &recordingMailer{})

	reminders, err := svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	require.Equal(t, int64(2), reminders[0].AdherentID)
	require.Equal(t, fixedNow.AddDate(0, 0, -7), store.lastCut)
}
