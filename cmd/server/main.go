package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/covecrm/dialer-bridge/internal/bridge"
	"github.com/covecrm/dialer-bridge/internal/cache"
	"github.com/covecrm/dialer-bridge/internal/config"
	"github.com/covecrm/dialer-bridge/internal/control"
	"github.com/covecrm/dialer-bridge/internal/crm"
	"github.com/covecrm/dialer-bridge/internal/domain"
	"github.com/covecrm/dialer-bridge/internal/model"
	"github.com/covecrm/dialer-bridge/internal/repository"
	"github.com/covecrm/dialer-bridge/internal/stepper"
	"github.com/covecrm/dialer-bridge/internal/telephony"
	"github.com/covecrm/dialer-bridge/internal/usage"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"github.com/covecrm/dialer-bridge/pkg/pubsub"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Server wires every process-wide collaborator the bridge needs and
// owns the HTTP control plane (spec §6): the telephony websocket
// upgrade route plus the start-session/stop-session/healthz routes.
type Server struct {
	cfg    *config.Config
	router *mux.Router

	registry   *bridge.Registry
	crm        *crm.Client
	store      *cache.Store
	voicemail  *control.VoicemailGuard
	dispatcher *control.Dispatcher
	reporter   *usage.Reporter
	ledger     *repository.Ledger

	pubsubClient *gpubsub.Client

	rootCtx context.Context
	cancel  context.CancelFunc
}

// NewServer initializes every process-wide collaborator. Redis is
// load-bearing (ControlDispatcher's dedup depends on it); the call-event
// ledger and Pub/Sub metrics fan-out are both best-effort and degrade to
// nil rather than fail startup, matching spec §7's "CRM HTTP failure ...
// never fatal" posture extended to these two ambient concerns.
func NewServer(cfg *config.Config) (*Server, error) {
	rootCtx, cancel := context.WithCancel(context.Background())

	crmClient := crm.New(cfg.CRMBaseURL, cfg.CRMCronKey, cfg.CRMAgentKey)

	store, err := cache.New(rootCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	// repository.NewLedger reads its own DB_HOST/DB_PORT/... env vars
	// (the teacher's env-at-point-of-use idiom); a failed connection is
	// logged and the bridge runs with ledger == nil, since the ledger is
	// an audit trail, never load-bearing for call handling (spec §7).
	var ledger *repository.Ledger
	if l, err := repository.NewLedger(); err != nil {
		logger.Base().Warn("call-event ledger unavailable, continuing without it", zap.Error(err))
	} else {
		ledger = l
	}

	usageCfg := usage.Config{
		VendorCostPerMinuteUSD: cfg.VendorCostPerMinuteUSD,
		PubIDPrefix:            cfg.PubSubConvPrefix,
	}
	var pubsubClient *gpubsub.Client
	if cfg.PubSubEnabled() {
		client, topic, err := pubsub.OpenTopic(rootCtx, pubsub.Config{
			ProjectID: cfg.PubSubProjectID,
			TopicName: cfg.PubSubTopicName,
		})
		if err != nil {
			logger.Base().Warn("pubsub topic unavailable, metrics fan-out disabled", zap.Error(err))
		} else {
			pubsubClient = client
			usageCfg.Topic = topic
		}
	}

	s := &Server{
		cfg:        cfg,
		router:     mux.NewRouter(),
		registry:   bridge.NewRegistry(),
		crm:        crmClient,
		store:      store,
		voicemail:  control.NewVoicemailGuard(crmClient),
		dispatcher: control.NewDispatcher(crmClient, store),
		reporter:   usage.New(crmClient, usageCfg),
		ledger:     ledger,
		pubsubClient: pubsubClient,
		rootCtx:    rootCtx,
		cancel:     cancel,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/ws/telephony", s.handleTelephonyWebSocket)
	s.router.HandleFunc("/start-session", s.handleStartSession).Methods(http.MethodPost)
	s.router.HandleFunc("/stop-session", s.handleStopSession).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
}

// handleTelephonyWebSocket is the carrier-facing upgrade route. The
// start event carries the identifiers needed to fetch Context and dial
// the model, so the Call (and its actor) only come into being once
// that event arrives; until then this goroutine is just a reader.
func (s *Server) handleTelephonyWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := telephony.Upgrade(w, r)
	if err != nil {
		logger.Base().Warn("telephony upgrade failed", zap.Error(err))
		return
	}
	tlink := telephony.NewLink(conn)
	callCtx, cancel := context.WithCancel(s.rootCtx)

	var actor *bridge.Call
	var streamSid string

	cb := telephony.Callbacks{
		OnStart: func(sid, callSid, sessionID, leadID string) {
			streamSid = sid
			a, ok := s.admitCall(callCtx, tlink, sid, callSid, sessionID, leadID)
			if !ok {
				cancel()
				return
			}
			actor = a
		},
		OnMedia: func(payload []byte) {
			if actor != nil {
				actor.PushTelephonyFrame(payload)
			}
		},
		OnStop: func() {
			if actor != nil {
				actor.Stop()
			}
			if streamSid != "" {
				s.registry.Remove(streamSid)
			}
			cancel()
		},
	}

	if err := tlink.Run(callCtx, cb); err != nil {
		logger.Base().Debug("telephony link closed", zap.Error(err))
	}
	if actor != nil {
		actor.Stop()
	}
	cancel()
}

// admitCall runs the one-time per-call setup spec §4.10/§5 describe:
// voicemail pre-check, Context fetch, model dial, and the mandatory
// session.update. It returns ok=false if the call should not proceed
// (voicemail pickup or a fatal dependency failure).
func (s *Server) admitCall(ctx context.Context, tlink *telephony.Link, streamSid, callSid, sessionID, leadID string) (*bridge.Call, bool) {
	call := domain.NewCall(streamSid, callSid)
	call.SessionID = sessionID
	call.LeadID = leadID

	verdict, err := s.voicemail.Check(ctx, sessionID, leadID, callSid)
	if err != nil {
		logger.Base().Warn("voicemail check failed, proceeding as human", zap.Error(err), zap.String("callId", callSid))
	}
	if verdict.IsMachine {
		call.Flags.VoicemailSkipArmed = true
		logger.Base().Info("voicemail pickup detected, terminating call", zap.String("callId", callSid), zap.String("answeredBy", verdict.AnsweredBy))
		tlink.Close()
		return nil, false
	}

	crmCtx, err := s.crm.FetchContext(ctx, sessionID, leadID, callSid)
	if err != nil {
		logger.Base().Error("context fetch failed, cannot start call", zap.Error(err), zap.String("callId", callSid))
		tlink.Close()
		return nil, false
	}
	call.Context = crmCtx
	call.ScriptSteps = stepper.BuildScriptSet(crmCtx.ScriptKey).Steps

	mlink, err := model.Dial(ctx, s.cfg.OpenAIRealtimeURL, s.cfg.OpenAIAPIKey, s.cfg.OpenAIRealtimeModel)
	if err != nil {
		logger.Base().Error("model dial failed, cannot start call", zap.Error(err), zap.String("callId", callSid))
		tlink.Close()
		return nil, false
	}

	actor := bridge.New(call, tlink, mlink, s.dispatcher, s.reporter, s.ledger)
	s.registry.Put(call)
	actor.Spawn(ctx)

	go func() {
		if err := mlink.Run(ctx, actor.Handlers()); err != nil {
			logger.Base().Debug("model link closed", zap.Error(err), zap.String("callId", callSid))
		}
	}()

	instructions := crmCtx.Notes
	if instructions == "" {
		instructions = fmt.Sprintf("You are %s, a friendly insurance agency assistant calling %s.", crmCtx.AssistantName, crmCtx.LeadFirstName)
	}
	if err := mlink.SendSessionUpdate(model.SessionConfig{
		Instructions: instructions,
		Voice:        crmCtx.VoiceID,
		Temperature:  0.8,
	}); err != nil {
		logger.Base().Error("session.update failed", zap.Error(err), zap.String("callId", callSid))
	}

	return actor, true
}

type sessionKickRequest struct {
	UserEmail string `json:"userEmail"`
	SessionID string `json:"sessionId"`
	FolderID  string `json:"folderId,omitempty"`
	Total     int    `json:"total,omitempty"`
}

// handleStartSession and handleStopSession are the thin worker-kick
// routes spec §6 names; call origination itself is out of scope, so
// these only acknowledge the request and leave an audit trail.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionKickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	logger.Base().Info("session kick: start", zap.String("sessionId", req.SessionID), zap.String("userEmail", req.UserEmail))
	if s.ledger != nil {
		_ = s.ledger.Record(r.Context(), "", req.SessionID, "session_kick", "start")
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	var req sessionKickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	logger.Base().Info("session kick: stop", zap.String("sessionId", req.SessionID), zap.String("userEmail", req.UserEmail))
	if s.ledger != nil {
		_ = s.ledger.Record(r.Context(), "", req.SessionID, "session_kick", "stop")
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"ok":          true,
		"instanceId":  s.cfg.InstanceID,
		"activeCalls": s.registry.Len(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Shutdown cancels every in-flight Call's context and closes the
// process-wide collaborators. Called from main on SIGTERM, after
// http.Server.Shutdown has stopped accepting new upgrades.
func (s *Server) Shutdown() {
	s.cancel()
	if err := s.store.Close(); err != nil {
		logger.Base().Warn("redis close on shutdown", zap.Error(err))
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			logger.Base().Warn("ledger close on shutdown", zap.Error(err))
		}
	}
	if s.pubsubClient != nil {
		if err := s.pubsubClient.Close(); err != nil {
			logger.Base().Warn("pubsub client close on shutdown", zap.Error(err))
		}
	}
}

// runStartupCanary dials the model endpoint and sends a real
// session.update before the server is allowed to start listening
// (spec §6's mandatory startup canary). A misconfigured model
// endpoint or credential fails the process immediately rather than
// accepting calls it cannot actually bridge.
func runStartupCanary(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	link, err := model.Dial(ctx, cfg.OpenAIRealtimeURL, cfg.OpenAIAPIKey, cfg.OpenAIRealtimeModel)
	if err != nil {
		return fmt.Errorf("dial model endpoint: %w", err)
	}
	defer link.Close()

	if err := link.SendSessionUpdate(model.SessionConfig{
		Instructions: "startup canary, discard immediately",
		Voice:        "alloy",
		Temperature:  0.8,
	}); err != nil {
		return fmt.Errorf("send canary session.update: %w", err)
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("no .env file loaded (expected in production): %v\n", err)
	}

	cfg := config.LoadFromEnv()

	if _, err := logger.Init(cfg.LogEnv); err != nil {
		fmt.Printf("zap logger init failed, falling back to std log: %v\n", err)
	}
	defer logger.Sync()

	if err := runStartupCanary(cfg); err != nil {
		logger.Base().Fatal("startup canary failed, refusing to start", zap.Error(err))
	}
	logger.Base().Info("startup canary passed")

	srv, err := NewServer(cfg)
	if err != nil {
		logger.Base().Fatal("server init failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Base().Info("listening", zap.String("addr", httpServer.Addr), zap.String("instanceId", cfg.InstanceID))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Base().Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Base().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Base().Warn("http shutdown error", zap.Error(err))
	}
	srv.Shutdown()
}
