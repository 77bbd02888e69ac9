package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeDuesGenerate generates the current month's cotisations.
	TaskTypeDuesGenerate = "ledger:dues_generate"
	// TaskTypeLateSweep marks overdue cotisations late.
	TaskTypeLateSweep = "ledger:late_sweep"
	// TaskTypeRelanceScan enqueues reminder emails for late dues.
	TaskTypeRelanceScan = "relance:scan"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// DuesGeneratePayload selects the period to generate. Zero values mean
// the current month.
type DuesGeneratePayload struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewDuesGenerateTask constructs an Asynq task.
func NewDuesGenerateTask(payload DuesGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDuesGenerate, data), nil
}

// NewLateSweepTask constructs an Asynq task.
func NewLateSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLateSweep, nil)
}

// NewRelanceScanTask constructs an Asynq task.
func NewRelanceScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRelanceScan, nil)
}

// Sender delivers one email. The default implementation only logs; SMTP
// delivery plugs in behind this interface.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender logs outgoing mail instead of delivering it.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(ctx context.Context, to, subject, body string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("send email",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(body)),
	)
	return nil
}

// SendEmailJob processes TaskTypeSendEmail tasks.
type SendEmailJob struct {
	Sender Sender
	Logger *slog.Logger
}

// Handle executes the email delivery.
func (j SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	sender := j.Sender
	if sender == nil {
		sender = LogSender{Logger: j.Logger}
	}
	start := time.Now()
	if err := sender.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("email sent",
			slog.String("to", payload.To),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}
