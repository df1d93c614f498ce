package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/covecrm/dialer-bridge/internal/bookinggate"
	"github.com/covecrm/dialer-bridge/internal/cache"
	"github.com/covecrm/dialer-bridge/internal/crm"
	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/covecrm/dialer-bridge/internal/model"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"go.uber.org/zap"
)

const dedupTTL = 24 * time.Hour

var validOutcomes = map[domain.FinalOutcome]bool{
	domain.OutcomeBooked:        true,
	domain.OutcomeNotInterested: true,
	domain.OutcomeNoAnswer:      true,
	domain.OutcomeCallback:      true,
	domain.OutcomeDoNotCall:     true,
	domain.OutcomeDisconnected:  true,
	domain.OutcomeUnknown:       true,
}

// Dispatcher turns a model.Control block into the CRM side effect it
// names (spec §4.10). Every dispatch is best-effort: failures are
// logged, never fatal to the call (spec §7).
type Dispatcher struct {
	crm   *crm.Client
	store *cache.Store
}

func NewDispatcher(c *crm.Client, store *cache.Store) *Dispatcher {
	return &Dispatcher{crm: c, store: store}
}

// Handle inspects ctrl.Kind and dispatches accordingly. callID scopes
// the idempotency keys; it must be stable for the whole call.
func (d *Dispatcher) Handle(ctx context.Context, callID string, ctrl model.Control, admit func() (bookinggate.Request, bool)) {
	switch ctrl.Kind {
	case "book_appointment":
		d.handleBookAppointment(ctx, callID, ctrl, admit)
	case "final_outcome":
		d.handleFinalOutcome(ctx, callID, ctrl)
	default:
		// Any other control kind is ignored per spec §4.10.
	}
}

func (d *Dispatcher) handleBookAppointment(ctx context.Context, callID string, ctrl model.Control, admit func() (bookinggate.Request, bool)) {
	req, ok := admit()
	if !ok {
		logger.Base().Debug("book_appointment control rejected by booking gate", zap.String("callId", callID))
		return
	}

	claimed, err := d.store.MarkIfAbsent(ctx, cache.KeyBookAppointment, callID, dedupTTL)
	if err != nil {
		logger.Base().Warn("booking dedup check failed, proceeding anyway", zap.Error(err))
	} else if !claimed {
		logger.Base().Info("book_appointment already dispatched for this call, skipping", zap.String("callId", callID))
		return
	}

	if _, err := d.crm.BookAppointment(ctx, req); err != nil {
		logger.Base().Error("book_appointment dispatch failed", zap.Error(err), zap.String("callId", callID))
	}
}

func (d *Dispatcher) handleFinalOutcome(ctx context.Context, callID string, ctrl model.Control) {
	outcome := domain.FinalOutcome(ctrl.FinalOutcome)
	if !validOutcomes[outcome] {
		logger.Base().Warn("final_outcome control had unrecognized value, dropping", zap.String("value", ctrl.FinalOutcome))
		return
	}

	claimed, err := d.store.MarkIfAbsent(ctx, cache.KeyFinalOutcome, callID, dedupTTL)
	if err != nil {
		logger.Base().Warn("outcome dedup check failed, proceeding anyway", zap.Error(err))
	} else if !claimed {
		return
	}

	if _, err := d.crm.PostOutcome(ctx, callID, outcome); err != nil {
		logger.Base().Error("final_outcome dispatch failed", zap.Error(err), zap.String("callId", callID))
	}
}

// ParseBookAppointment unmarshals the raw bookAppointment payload a
// control block carries into a crm.Client-ready request, filling in
// the parts the model doesn't own (session/call identity). startTimeUtc
// may be ISO-8601 or epoch seconds/milliseconds, as a string or number.
func ParseBookAppointment(raw json.RawMessage, sessionID, leadID string) (bookinggate.Request, error) {
	var req bookinggate.Request
	if len(raw) == 0 {
		return req, fmt.Errorf("control: empty bookAppointment payload")
	}
	var wire struct {
		bookinggate.Request
		StartTimeUTC json.RawMessage `json:"startTimeUtc"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return req, fmt.Errorf("control: unmarshal bookAppointment: %w", err)
	}
	start, err := bookinggate.NormalizeStartTime(strings.Trim(string(wire.StartTimeUTC), `"`))
	if err != nil {
		return req, fmt.Errorf("control: normalize startTimeUtc: %w", err)
	}
	req = wire.Request
	req.StartTimeUTC = start
	req.AICallSessionID = sessionID
	req.LeadID = leadID
	return req, nil
}
