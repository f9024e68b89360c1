package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/approvals"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeDecisionEmail is the task type for approval decision emails.
	TaskTypeDecisionEmail = "approvals:decision_email"
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

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP/Mailpit once outbound mail is enabled.
	slog.Default().Info("send email", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}

// NewDecisionEmailTask constructs a task from a decision email payload.
func NewDecisionEmailTask(email approvals.DecisionEmail) (*asynq.Task, error) {
	data, err := json.Marshal(email)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDecisionEmail, data), nil
}

// DecisionEmailProcessor resolves user details at send time and hands the
// composed message to the mail task. Address lookups happen here rather than
// at enqueue time so a renamed user gets current data.
type DecisionEmailProcessor struct {
	pool   *pgxpool.Pool
	client *Client
	logger *slog.Logger
}

// NewDecisionEmailProcessor constructs a processor.
func NewDecisionEmailProcessor(pool *pgxpool.Pool, client *Client, logger *slog.Logger) *DecisionEmailProcessor {
	return &DecisionEmailProcessor{pool: pool, client: client, logger: logger}
}

// Handle processes TaskTypeDecisionEmail tasks.
func (p *DecisionEmailProcessor) Handle(ctx context.Context, t *asynq.Task) error {
	var email approvals.DecisionEmail
	if err := json.Unmarshal(t.Payload(), &email); err != nil {
		return asynq.SkipRetry
	}

	var requesterEmail, requesterName string
	err := p.pool.QueryRow(ctx, `SELECT email, full_name FROM users WHERE tenant_id=$1 AND id=$2`,
		email.TenantID, email.RequesterID).Scan(&requesterEmail, &requesterName)
	if err != nil {
		p.logger.Warn("decision email requester lookup",
			slog.String("request_id", email.RequestID),
			slog.Any("error", err))
		return asynq.SkipRetry
	}

	var deciderName string
	if err := p.pool.QueryRow(ctx, `SELECT full_name FROM users WHERE id=$1`,
		email.DeciderID).Scan(&deciderName); err != nil {
		deciderName = "an approver"
	}

	verb := "approved"
	if email.Decision == approvals.DecisionReject {
		verb = "rejected"
	}
	entity := strings.ToLower(string(email.RelatedTo))
	subject := fmt.Sprintf("Your %s approval request was %s", entity, verb)
	body := fmt.Sprintf("Hi %s,\n\nYour approval request for %s %s was %s by %s.",
		requesterName, entity, email.RelatedID, verb, deciderName)
	if email.Reason != nil && *email.Reason != "" {
		body += "\nReason: " + *email.Reason
	}

	_, err = p.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      requesterEmail,
		Subject: subject,
		Body:    body,
	})
	return err
}
