package notifier

import (
	"context"

	"github.com/mplswatch/sentinel/internal/logger"
)

// LogSink satisfies Sink by writing the message to the structured log
// instead of a real webhook. Dry-run mode routes dispatch here.
type LogSink struct{}

func (LogSink) Send(_ context.Context, msg Message) error {
	logger.Info("dry-run alert dispatch",
		"cluster_id", msg.ClusterID,
		"kind", msg.Kind,
		"label", msg.Label,
		"source_diversity", msg.SourceDiversity,
		"member_count", msg.MemberCount,
		"confidence", msg.Confidence,
		"idempotency_token", msg.IdempotencyToken,
	)
	return nil
}
