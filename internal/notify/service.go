// Package notify alerts the site owner when a visitor shows hiring intent.
// Delivery is best-effort: failures are logged and never surface to the
// chat pipeline.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/calebwren/portfolio-ai/pkg/logging"
)

const notifyTimeout = 10 * time.Second

// Service fans a deal-intent alert out to email recipients and an optional
// webhook.
type Service struct {
	sender     EmailSender
	recipients []string
	webhookURL string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewService builds the notifier. sender may be nil when email is not
// configured; webhookURL may be empty.
func NewService(sender EmailSender, recipients []string, webhookURL string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sender:     sender,
		recipients: recipients,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: notifyTimeout},
		logger:     logger.WithComponent("notify"),
	}
}

// NotifyDealIntent alerts all configured channels about a potential lead.
// Safe to call from a goroutine after the originating request finished.
func (s *Service) NotifyDealIntent(ctx context.Context, sessionID, message string) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if s.sender != nil {
		subject := "Portfolio lead: visitor showed hiring intent"
		body := fmt.Sprintf("Session %s\n\nVisitor message:\n%s\n", sessionID, message)
		for _, to := range s.recipients {
			if err := s.sender.Send(ctx, to, subject, body); err != nil {
				s.logger.Error("lead email failed", "to", to, "error", err)
			}
		}
	}

	if s.webhookURL != "" {
		s.postWebhook(ctx, sessionID, message)
	}

	if s.sender == nil && s.webhookURL == "" {
		s.logger.Info("deal intent detected but no notification channel configured",
			"session_id", sessionID)
	}
}

func (s *Service) postWebhook(ctx context.Context, sessionID, message string) {
	payload, err := json.Marshal(map[string]string{
		"event":     "deal_intent",
		"sessionId": sessionID,
		"message":   message,
		"at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error("webhook payload encode failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		s.logger.Error("webhook request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("lead webhook failed", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		s.logger.Error("lead webhook rejected", "status", resp.StatusCode)
	}
}
