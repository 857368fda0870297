package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slack-go/slack"
	"github.com/sony/gobreaker"

	sentinelerrors "github.com/mplswatch/sentinel/internal/errors"
	"github.com/mplswatch/sentinel/internal/models"
)

// SlackSink dispatches Messages to a Slack-compatible incoming webhook,
// wrapped in a circuit breaker so a run of consecutive failures (an
// unreachable or misconfigured webhook) trips open and short-circuits
// further attempts instead of burning the retry budget on every single
// alert.
type SlackSink struct {
	webhookURL string
	breaker    *gobreaker.CircuitBreaker
}

// NewSlackSink returns a SlackSink posting to webhookURL, with a breaker
// that opens after 5 consecutive failures and probes again after 30s.
func NewSlackSink(webhookURL string) *SlackSink {
	settings := gobreaker.Settings{
		Name:        "notifier-webhook",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &SlackSink{
		webhookURL: webhookURL,
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Send posts msg as a Slack attachment-style webhook payload.
func (s *SlackSink) Send(ctx context.Context, msg Message) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		payload := &slack.WebhookMessage{
			Text: fmt.Sprintf("[%s] enforcement activity cluster %s", msg.Kind, msg.ClusterID),
			Attachments: []slack.Attachment{
				{
					Color: colorFor(msg.Kind),
					Title: msg.Label,
					Fields: []slack.AttachmentField{
						{Title: "Sources", Value: fmt.Sprintf("%d", msg.SourceDiversity), Short: true},
						{Title: "Reports", Value: fmt.Sprintf("%d", msg.MemberCount), Short: true},
						{Title: "Confidence", Value: fmt.Sprintf("%.2f", msg.Confidence), Short: true},
						{Title: "Idempotency token", Value: msg.IdempotencyToken, Short: true},
					},
					Footer: fmt.Sprintf("%.4f,%.4f", msg.CentroidLat, msg.CentroidLon),
				},
			},
		}

		err := slack.PostWebhookContext(ctx, s.webhookURL, payload)
		if err != nil {
			return nil, classifyWebhookErr(msg.ClusterID, err)
		}
		return nil, nil
	})

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return sentinelerrors.NotifierTransientError{ClusterID: msg.ClusterID, Err: err}
	}
	return err
}

func colorFor(kind models.AlertKind) string {
	if kind == models.AlertNew {
		return "#d00000"
	}
	return "#eb8c00"
}

// classifyWebhookErr distinguishes a permanently-misconfigured webhook
// (bad URL, revoked token) from a transient delivery failure (rate
// limit, timeout, 5xx) worth retrying.
func classifyWebhookErr(clusterID string, err error) error {
	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		code := statusErr.Code
		if code >= 400 && code < 500 && code != 429 {
			return sentinelerrors.NotifierPermanentError{ClusterID: clusterID, Err: err}
		}
	}
	return sentinelerrors.NotifierTransientError{ClusterID: clusterID, Err: err}
}
