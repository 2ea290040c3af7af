package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antonkh/ragline/internal/core/domain"
)

// sseStream serializes server-sent-event frames onto a response writer.
// Progress events arrive from the pipeline's dispatcher goroutine while the
// handler goroutine owns the final frames, hence the mutex.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	return &sseStream{w: w, flusher: flusher}, nil
}

func (s *sseStream) send(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return
	}
	s.flusher.Flush()
}

func (s *sseStream) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, "data: [DONE]\n\n")
	s.flusher.Flush()
}

type sseProgressFrame struct {
	Type    string         `json:"type"`
	Stage   string         `json:"stage"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type sseAnswerFrame struct {
	Type   string         `json:"type"`
	Answer *domain.Answer `json:"answer"`
}

type sseErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (rt *Router) askStream(w http.ResponseWriter, r *http.Request) {
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

	stream, err := newSSEStream(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	var capture eventCapture
	onEvent := func(event domain.ProgressEvent) {
		capture.observe(event)
		stream.send(sseProgressFrame{
			Type:    "progress",
			Stage:   string(event.Stage),
			Message: event.Message,
			Data:    event.Data,
		})
	}

	start := time.Now()
	answer, err := rt.answerService.Answer(r.Context(), req.Question, onEvent)
	if err != nil {
		stream.send(sseErrorFrame{Type: "error", Error: err.Error()})
		stream.done()
		return
	}

	totalResults := int(capture.intValue(domain.StageComplete, "total_results"))
	rt.recordPipelineObservations("ask_stream", &capture, totalResults, time.Since(start))
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

	stream.send(sseAnswerFrame{Type: "answer", Answer: answer})
	stream.done()
}
