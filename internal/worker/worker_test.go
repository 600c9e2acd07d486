package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexiom/backend/internal/email"
	"github.com/nexiom/backend/pkg/queue"
)

// captureSender records sent messages.
type captureSender struct {
	sent []email.Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg email.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func verificationJob(t *testing.T) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(queue.VerificationEmailPayload{
		UserID:    "u1",
		Recipient: "a@example.com",
		Name:      "A",
		VerifyURL: "http://localhost:8080/auth/verify-email?token=abc",
	})
	require.NoError(t, err)
	return &queue.Job{ID: "j1", Type: queue.JobTypeVerificationEmail, Payload: payload}
}

func TestProcess_SendsVerificationEmail(t *testing.T) {
	sender := &captureSender{}
	p := NewEmailProcessor(sender, nil, nil)

	require.NoError(t, p.Process(context.Background(), verificationJob(t)))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	require.Equal(t, "a@example.com", msg.To)
	require.Equal(t, "Verify your email", msg.Subject)
	require.Contains(t, msg.Text, "http://localhost:8080/auth/verify-email?token=abc")
	require.Contains(t, msg.HTML, `href="http://localhost:8080/auth/verify-email?token=abc"`)
}

func TestProcess_UnknownJobType(t *testing.T) {
	sender := &captureSender{}
	p := NewEmailProcessor(sender, nil, nil)

	err := p.Process(context.Background(), &queue.Job{ID: "j1", Type: "reindex"})
	require.Error(t, err)
	require.Empty(t, sender.sent)
}

func TestProcess_MalformedPayload(t *testing.T) {
	sender := &captureSender{}
	p := NewEmailProcessor(sender, nil, nil)

	err := p.Process(context.Background(), &queue.Job{
		ID:      "j1",
		Type:    queue.JobTypeVerificationEmail,
		Payload: json.RawMessage(`{"recipient":`),
	})
	require.Error(t, err)
	require.Empty(t, sender.sent)
}
