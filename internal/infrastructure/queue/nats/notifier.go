package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

// NotifyReviewNeeded informs the human-review subsystem that a document
// produced chunks below the auto-approval threshold. It is called at
// most once per run and only when the pending count is positive.
func (q *Queue) NotifyReviewNeeded(ctx context.Context, n domain.ReviewNotification) error {
	if n.Type == "" {
		n.Type = "chunks_pending_review"
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal review notification: %w", err)
	}
	return q.publish(ctx, "nats.publish_notification", q.notifySubject, payload)
}
