package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/auto-dns/harbinger/internal/format"
	"github.com/slack-go/slack"
)

// SlackSender posts payloads to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
	httpClient *http.Client
}

func NewSlackSender(webhookURL string, timeout time.Duration) (*SlackSender, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("parse webhook url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("webhook url must be an absolute http(s) url")
	}
	return &SlackSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Send performs one POST. Failures are returned as *TransientError or *PermanentError.
func (s *SlackSender) Send(ctx context.Context, p format.Payload) error {
	if p.IsEmpty() {
		return &PermanentError{Err: ErrEmptyPayload}
	}
	if _, err := p.JSON(); err != nil {
		return &PermanentError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	msg := p.Message
	err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.httpClient, &msg)
	if err == nil || isSuccessStatus(err) {
		return nil
	}
	return classifyError(err)
}

func classifyError(err error) error {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return &TransientError{Err: err, RetryAfter: rateLimited.RetryAfter}
	}

	var status slack.StatusCodeError
	if errors.As(err, &status) {
		if status.Code >= http.StatusInternalServerError || status.Code == http.StatusTooManyRequests {
			return &TransientError{Err: err}
		}
		return &PermanentError{Err: err}
	}

	return &TransientError{Err: err}
}

// isSuccessStatus matches the StatusCodeError slack-go reports for 2xx responses other than 200.
func isSuccessStatus(err error) bool {
	var status slack.StatusCodeError
	return errors.As(err, &status) && status.Code >= http.StatusOK && status.Code < http.StatusMultipleChoices
}
