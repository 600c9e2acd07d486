// Package worker processes background jobs from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexiom/backend/internal/email"
	"github.com/nexiom/backend/pkg/queue"
)

// EmailProcessor delivers queued verification emails.
type EmailProcessor struct {
	sender email.Sender
	queue  *queue.Queue
	logger *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(sender email.Sender, q *queue.Queue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{sender: sender, queue: q, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeVerificationEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.VerificationEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	msg := email.Message{
		To:      payload.Recipient,
		Subject: "Verify your email",
		Text:    "Please verify your email by clicking the following link: " + payload.VerifyURL,
		HTML: fmt.Sprintf(`<p>Please verify your email by clicking the following link: <a href="%s">%s</a></p>`,
			payload.VerifyURL, payload.VerifyURL),
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return err
	}

	p.logger.Info("verification email delivered",
		zap.String("job_id", job.ID), zap.String("user_id", payload.UserID))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
