package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antonkh/ragline/internal/core/domain"
	"github.com/antonkh/ragline/internal/core/ports"
	"github.com/antonkh/ragline/internal/observability/metrics"
)

type RouterConfig struct {
	Service          string
	RateLimitRPS     int
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	contextService ports.ContextService
	answerService  ports.AnswerService
	runStore       ports.RunStore
	publisher      ports.RunPublisher
	metrics        *metrics.HTTPServerMetrics
	cfg            RouterConfig
}

func NewRouter(
	contextService ports.ContextService,
	answerService ports.AnswerService,
	runStore ports.RunStore,
	publisher ports.RunPublisher,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	if cfg.BackpressureWait <= 0 {
		cfg.BackpressureWait = 100 * time.Millisecond
	}
	return &Router{
		contextService: contextService,
		answerService:  answerService,
		runStore:       runStore,
		publisher:      publisher,
		metrics:        serverMetrics,
		cfg:            cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/context/retrieve", rt.retrieveContext)
	mux.HandleFunc("/v1/prompt/augment", rt.augmentPrompt)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/ask/stream", rt.askStream)
	mux.HandleFunc("/v1/runs", rt.listRuns)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) retrieveContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	var capture eventCapture
	start := time.Now()
	retrieved, err := rt.contextService.RetrieveContext(r.Context(), req.Query, capture.observe)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.recordPipelineObservations("context_retrieve", &capture, retrieved.TotalResults, time.Since(start))
	rt.publishRun(r.Context(), runRecordFromContext(retrieved))

	writeJSON(w, http.StatusOK, retrieved)
}

func (rt *Router) augmentPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	prompt, err := rt.contextService.AugmentPrompt(r.Context(), req.Message, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	var capture eventCapture
	start := time.Now()
	answer, err := rt.answerService.Answer(r.Context(), req.Question, capture.observe)
	if err != nil {
		writeError(w, err)
		return
	}

	totalResults := int(capture.intValue(domain.StageComplete, "total_results"))
	rt.recordPipelineObservations("ask", &capture, totalResults, time.Since(start))
	rt.publishRun(r.Context(), domain.RunRecord{
		ID:               uuid.NewString(),
		Query:            req.Question,
		SubQueries:       answer.SubQueries,
		TotalResults:     totalResults,
		SourceCount:      len(answer.Sources),
		ContextEmpty:     totalResults == 0,
		ProcessingTimeMs: capture.intValue(domain.StageComplete, "elapsed_ms"),
		CreatedAt:        time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.runStore == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run store is not configured"})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	records, err := rt.runStore.ListRecentRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": records})
}

func (rt *Router) publishRun(ctx context.Context, record domain.RunRecord) {
	if rt.publisher == nil {
		return
	}
	// The audit trail is best effort: a broker outage must not fail the
	// request that already produced a result.
	if err := rt.publisher.PublishRunCompleted(context.WithoutCancel(ctx), record); err != nil {
		slog.Warn("run_publish_failed",
			"run_id", record.ID,
			"error", err,
		)
	}
}

func runRecordFromContext(retrieved *domain.RetrievedContext) domain.RunRecord {
	return domain.RunRecord{
		ID:               uuid.NewString(),
		Query:            retrieved.Query,
		SubQueries:       retrieved.SubQueries,
		TotalResults:     retrieved.TotalResults,
		SourceCount:      len(retrieved.Sources),
		ContextEmpty:     retrieved.Context == "",
		ProcessingTimeMs: retrieved.ProcessingTimeMs,
		CreatedAt:        time.Now().UTC(),
	}
}

func (rt *Router) recordPipelineObservations(endpoint string, capture *eventCapture, totalResults int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordPipelineRun(rt.cfg.Service, endpoint, totalResults, duration)
	if capture.boolValue(domain.StageDecomposition, "fallback") {
		rt.metrics.RecordDecompositionFallback(rt.cfg.Service, endpoint)
	}
	rt.metrics.RecordFailedSubQueries(rt.cfg.Service, endpoint,
		int(capture.intValue(domain.StageAggregation, "failed_sub_queries")))
}

// eventCapture keeps the last progress event per stage so handlers can
// report pipeline statistics without threading them through the result types.
// Progress events arrive from the pipeline's dispatcher goroutine.
type eventCapture struct {
	mu     sync.Mutex
	events map[domain.ProgressStage]domain.ProgressEvent
}

func (c *eventCapture) observe(event domain.ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		c.events = make(map[domain.ProgressStage]domain.ProgressEvent)
	}
	c.events[event.Stage] = event
}

func (c *eventCapture) intValue(stage domain.ProgressStage, key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := c.events[stage].Data[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (c *eventCapture) boolValue(stage domain.ProgressStage, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _ := c.events[stage].Data[key].(bool)
	return v
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
