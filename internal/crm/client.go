// Package crm is the HTTP control-plane client described in spec §6:
// a shared-secret-header JSON client against the CRM's /context,
// /book-appointment, /outcome, and /usage endpoints. Every call the
// core makes to the outside world goes through this package.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/covecrm/dialer-bridge/internal/bookinggate"
	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the CRM-facing HTTP client. One instance is shared across
// all calls in the process; it carries no per-call state.
type Client struct {
	BaseURL    string
	CronKey    string // AI_DIALER_CRON_KEY — x-ai-dialer-key header
	AgentKey   string // AI_DIALER_AGENT_KEY — x-agent-key header
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// New builds a Client with a rate limiter grounded on the DOMAIN STACK
// decision to throttle CRM POSTs regardless of how fast the model
// loop emits controls.
func New(baseURL, cronKey, agentKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		CronKey:    cronKey,
		AgentKey:   agentKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
}

type apiEnvelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// FetchContext implements GET /context?sessionId&leadId&callSid&key.
func (c *Client) FetchContext(ctx context.Context, sessionID, leadID, callSid string) (*domain.Context, error) {
	q := url.Values{}
	q.Set("sessionId", sessionID)
	q.Set("leadId", leadID)
	q.Set("callSid", callSid)
	q.Set("key", c.CronKey)

	u := fmt.Sprintf("%s/context?%s", c.BaseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("crm: build context request: %w", err)
	}

	var out domain.ContextResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.OK || out.Context == nil {
		return nil, fmt.Errorf("crm: context fetch returned not-ok")
	}
	return out.Context, nil
}

// BookAppointmentResponse is returned by a successful POST /book-appointment.
type BookAppointmentResponse struct {
	OK      bool   `json:"ok"`
	EventID string `json:"eventId"`
}

// BookAppointment implements POST /book-appointment. Failures are
// logged and returned, never retried (spec §4.9) — BookingGate's
// caller decides whether the model gets another attempt.
func (c *Client) BookAppointment(ctx context.Context, req bookinggate.Request) (*BookAppointmentResponse, error) {
	u := fmt.Sprintf("%s/book-appointment?key=%s", c.BaseURL, url.QueryEscape(c.CronKey))

	var out BookAppointmentResponse
	if err := c.postJSON(ctx, u, req, "x-ai-dialer-key", c.CronKey, &out); err != nil {
		logger.Base().Error("book-appointment POST failed", zap.Error(err))
		return nil, err
	}
	return &out, nil
}

// OutcomeResponse is returned by a successful POST /outcome.
type OutcomeResponse struct {
	OK      bool   `json:"ok"`
	Outcome string `json:"outcome"`
	Moved   bool   `json:"moved"`
}

// PostOutcome implements POST /outcome.
func (c *Client) PostOutcome(ctx context.Context, callID string, outcome domain.FinalOutcome) (*OutcomeResponse, error) {
	body := map[string]string{"callId": callID, "outcome": string(outcome)}
	u := fmt.Sprintf("%s/outcome", c.BaseURL)

	var out OutcomeResponse
	if err := c.postJSON(ctx, u, body, "x-agent-key", c.AgentKey, &out); err != nil {
		logger.Base().Error("outcome POST failed", zap.Error(err), zap.String("callId", callID))
		return nil, err
	}
	return &out, nil
}

// UsagePayload is the billing payload spec §6 names for POST /usage.
type UsagePayload struct {
	CallID          string  `json:"callId"`
	DurationSeconds int64   `json:"durationSeconds"`
	CostUSD         float64 `json:"costUsd"`
}

// PostUsage implements POST /usage.
func (c *Client) PostUsage(ctx context.Context, payload UsagePayload) error {
	u := fmt.Sprintf("%s/usage", c.BaseURL)
	var out apiEnvelope
	if err := c.postJSON(ctx, u, payload, "x-agent-key", c.AgentKey, &out); err != nil {
		logger.Base().Error("usage POST failed", zap.Error(err), zap.String("callId", payload.CallID))
		return err
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, u string, body interface{}, headerKey, headerVal string, out interface{}) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("crm: rate limit wait: %w", err)
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("crm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("crm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerKey, headerVal)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	logger.Base().Debug("crm request", zap.String("url", req.URL.String()), zap.String("method", req.Method))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm: request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("crm: read response body: %w", err)
	}

	logger.Base().Debug("crm response", zap.Int("status", resp.StatusCode), zap.String("body", string(bodyBytes)))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("crm: %s returned status %d", req.URL.Path, resp.StatusCode)
	}
	if len(bodyBytes) == 0 {
		return nil
	}
	return json.Unmarshal(bodyBytes, out)
}
