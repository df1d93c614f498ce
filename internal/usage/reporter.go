// Package usage implements UsageReporter: exactly-once billing of a
// finished call's minutes to the CRM, with an optional Pub/Sub fan-out
// of conversation metrics for downstream analytics (spec §5's
// "attempt exactly-once usage reporting" cancellation guarantee).
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/covecrm/dialer-bridge/internal/crm"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationMetricsEvent mirrors the teacher's Pub/Sub metrics
// payload, adapted from chat/agent conversations to a single
// telephony call.
type ConversationMetricsEvent struct {
	ID        string     `json:"id"`
	CallID    string     `json:"call_id"`
	SessionID string     `json:"session_id"`
	LeadID    string     `json:"lead_id"`
	Channel   string     `json:"channel"`
	Status    string     `json:"status"`
	StartAt   time.Time  `json:"start_at"`
	EndAt     *time.Time `json:"end_at,omitempty"`
	DurationS int        `json:"duration_seconds"`
	TurnCount int         `json:"turn_count"`
	CreatedAt time.Time   `json:"created_at"`
}

// Config carries the billing rate and optional Pub/Sub wiring.
type Config struct {
	VendorCostPerMinuteUSD float64
	Topic                  *pubsub.Topic // nil disables metrics fan-out
	PubIDPrefix            string
}

// Reporter reports usage for a single call. Exactly-once delivery is
// the caller's responsibility (the Call actor invokes Report once,
// on teardown); Reporter itself is stateless and safe to share across
// calls.
type Reporter struct {
	crm *crm.Client
	cfg Config
}

func New(client *crm.Client, cfg Config) *Reporter {
	return &Reporter{crm: client, cfg: cfg}
}

// BillableAmount computes whole seconds elapsed and the cost at the
// given per-minute rate. A negative duration (clock skew) floors to zero.
func BillableAmount(startedAt, endedAt time.Time, costPerMinuteUSD float64) (int64, float64) {
	durationSeconds := int64(endedAt.Sub(startedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	costUSD := float64(durationSeconds) / 60.0 * costPerMinuteUSD
	return durationSeconds, costUSD
}

// Report bills the call's duration to the CRM and, if a Pub/Sub topic
// is configured, fans out a ConversationMetricsEvent. Both legs are
// best-effort; a failure is logged and does not block call teardown.
func (r *Reporter) Report(ctx context.Context, callID, sessionID, leadID string, startedAt, endedAt time.Time, turnCount int) {
	durationSeconds, costUSD := BillableAmount(startedAt, endedAt, r.cfg.VendorCostPerMinuteUSD)

	if err := r.crm.PostUsage(ctx, crm.UsagePayload{
		CallID:          callID,
		DurationSeconds: durationSeconds,
		CostUSD:         costUSD,
	}); err != nil {
		logger.Base().Error("usage report failed", zap.Error(err), zap.String("callId", callID))
	}

	if r.cfg.Topic == nil {
		return
	}
	r.publishMetrics(ctx, callID, sessionID, leadID, startedAt, endedAt, turnCount)
}

func (r *Reporter) publishMetrics(ctx context.Context, callID, sessionID, leadID string, startedAt, endedAt time.Time, turnCount int) {
	end := endedAt
	event := ConversationMetricsEvent{
		ID:        uuid.New().String(),
		CallID:    callID,
		SessionID: sessionID,
		LeadID:    leadID,
		Channel:   "voice",
		Status:    "completed",
		StartAt:   startedAt,
		EndAt:     &end,
		DurationS: int(endedAt.Sub(startedAt).Seconds()),
		TurnCount: turnCount,
		CreatedAt: startedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Base().Error("marshal conversation metrics failed", zap.Error(err))
		return
	}

	name := fmt.Sprintf("%s%s", r.cfg.PubIDPrefix, uuid.New().String())
	msg := &pubsub.Message{
		Attributes: map[string]string{"name": name},
		Data:       data,
	}

	result := r.cfg.Topic.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		logger.Base().Error("publish conversation metrics failed", zap.Error(err), zap.String("callId", callID))
		return
	}
	logger.Base().Info("published conversation metrics", zap.String("callId", callID), zap.Int("durationSeconds", event.DurationS))
}
