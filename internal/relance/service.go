package relance

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amicale/amicale/internal/money"
	"github.com/amicale/amicale/internal/shared"
)

// Mailer enqueues an outgoing email. The worker delivers asynchronously.
type Mailer interface {
	EnqueueEmail(ctx context.Context, to, subject, body string) error
}

// Service wraps reminder configuration and the late-dues scan.
type Service struct {
	store  Store
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, mailer Mailer, logger *slog.Logger) *Service {
	return &Service{store: store, mailer: mailer, logger: logger, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Config returns the persisted configuration, or defaults when no row
// exists yet.
func (s *Service) Config(ctx context.Context) (*Config, error) {
	cfg, err := s.store.GetConfig(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		def := DefaultConfig()
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Update validates and persists the configuration.
func (s *Service) Update(ctx context.Context, cfg Config) error {
	if cfg.DelayDays < 0 {
		return errors.New("relance: delay must not be negative")
	}
	cfg.Subject = strings.TrimSpace(cfg.Subject)
	if cfg.Subject == "" {
		cfg.Subject = DefaultConfig().Subject
	}
	if strings.TrimSpace(cfg.BodyTemplate) == "" {
		cfg.BodyTemplate = DefaultConfig().BodyTemplate
	}
	return s.store.SaveConfig(ctx, cfg)
}

// Scan finds adherents with dues overdue past the configured delay and
// enqueues one reminder email per adherent. Returns the reminders built.
func (s *Service) Scan(ctx context.Context) ([]Reminder, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -cfg.DelayDays)
	lateDues, err := s.store.ListLateDues(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	reminders := buildReminders(lateDues, *cfg)
	for _, rem := range reminders {
		if s.mailer == nil {
			continue
		}
		if err := s.mailer.EnqueueEmail(ctx, rem.Email, rem.Subject, rem.Body); err != nil {
			// A single enqueue failure must not abort the scan.
			s.logger.Warn("enqueue reminder",
				slog.Int64("adherent_id", rem.AdherentID),
				slog.Any("error", err))
		}
	}
	return reminders, nil
}

// buildReminders groups late dues per adherent and renders the template.
// Input ordering by adherent is preserved.
func buildReminders(lateDues []LateDue, cfg Config) []Reminder {
	var reminders []Reminder
	index := make(map[int64]int)
	for _, d := range lateDues {
		i, ok := index[d.AdherentID]
		if !ok {
			i = len(reminders)
			index[d.AdherentID] = i
			reminders = append(reminders, Reminder{
				AdherentID: d.AdherentID,
				Email:      d.Email,
				Subject:    cfg.Subject,
				Total:      decimal.Zero,
			})
		}
		reminders[i].Total = reminders[i].Total.Add(d.Remaining)
		reminders[i].Periods++
		if reminders[i].Body == "" {
			reminders[i].Body = renderBody(cfg.BodyTemplate, d)
		}
	}
	for i := range reminders {
		total := money.Round2(reminders[i].Total)
		reminders[i].Total = total
		reminders[i].Body = strings.ReplaceAll(reminders[i].Body, "{montant}", total.StringFixed(2))
	}
	return reminders
}

func renderBody(template string, d LateDue) string {
	body := strings.ReplaceAll(template, "{prenom}", d.FirstName)
	return strings.ReplaceAll(body, "{nom}", d.LastName)
}
