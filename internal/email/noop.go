package email

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ptcoach/pt-manager/internal/logging"
)

// NoopSender logs emails instead of delivering them. It is used when no
// provider key is configured, and keeps what it was given for inspection.
type NoopSender struct {
	log logging.Logger

	mu   sync.Mutex
	sent []SendRequest
}

func NewNoopSender(log logging.Logger) *NoopSender {
	return &NoopSender{log: log}
}

func (s *NoopSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	s.log.Info(ctx, "noop email send", "to", req.To, "subject", req.Subject)

	s.mu.Lock()
	s.sent = append(s.sent, req)
	s.mu.Unlock()

	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", time.Now().UnixNano()),
		SentAt:    time.Now(),
	}, nil
}

// Sent returns a copy of every request received so far.
func (s *NoopSender) Sent() []SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SendRequest(nil), s.sent...)
}
