package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antonkh/ragline/internal/core/domain"
)

type contextServiceFake struct {
	retrieved *domain.RetrievedContext
	prompt    string
	err       error
}

func (f *contextServiceFake) RetrieveContext(_ context.Context, _ string, _ domain.ProgressFunc) (*domain.RetrievedContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.retrieved, nil
}

func (f *contextServiceFake) AugmentPrompt(_ context.Context, _ string, _ domain.ProgressFunc) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.prompt, nil
}

type answerServiceFake struct {
	answer *domain.Answer
	events []domain.ProgressEvent
	err    error
}

func (f *answerServiceFake) Answer(_ context.Context, _ string, onEvent domain.ProgressFunc) (*domain.Answer, error) {
	if onEvent != nil {
		for _, event := range f.events {
			onEvent(event)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type runStoreFake struct {
	records []domain.RunRecord
	err     error
}

func (f *runStoreFake) InsertRun(_ context.Context, _ domain.RunRecord) error {
	return f.err
}

func (f *runStoreFake) ListRecentRuns(_ context.Context, _ int) ([]domain.RunRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type publisherFake struct {
	mu      sync.Mutex
	records []domain.RunRecord
	err     error
}

func (f *publisherFake) PublishRunCompleted(_ context.Context, record domain.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return f.err
}

func (f *publisherFake) published() []domain.RunRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RunRecord, len(f.records))
	copy(out, f.records)
	return out
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzReturnsOK(t *testing.T) {
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{}, nil, nil, nil, RouterConfig{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header on response")
	}
}

func TestRetrieveContextReturnsPayloadAndPublishesRun(t *testing.T) {
	publisher := &publisherFake{}
	rt := NewRouter(&contextServiceFake{
		retrieved: &domain.RetrievedContext{
			Query:            "how do tides work",
			Context:          "## Retrieved Context for: how do tides work\n...",
			Sources:          []string{"oceans.md"},
			SubQueries:       []string{"tidal forces", "lunar gravity"},
			TotalResults:     4,
			ProcessingTimeMs: 120,
		},
	}, &answerServiceFake{}, nil, publisher, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/context/retrieve", `{"query":"how do tides work"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var payload domain.RetrievedContext
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Query != "how do tides work" || payload.TotalResults != 4 {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	published := publisher.published()
	if len(published) != 1 {
		t.Fatalf("expected 1 published run, got %d", len(published))
	}
	record := published[0]
	if record.ID == "" {
		t.Fatalf("expected generated run id")
	}
	if record.TotalResults != 4 || record.SourceCount != 1 || record.ContextEmpty {
		t.Fatalf("unexpected run record: %+v", record)
	}
}

func TestRetrieveContextMapsInvalidInputTo400(t *testing.T) {
	rt := NewRouter(&contextServiceFake{
		err: domain.WrapError(domain.ErrInvalidInput, "retrieve context", fmt.Errorf("query is required")),
	}, &answerServiceFake{}, nil, nil, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/context/retrieve", `{"query":""}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRetrieveContextMapsStoreUnconfiguredTo500(t *testing.T) {
	rt := NewRouter(&contextServiceFake{
		err: domain.WrapError(domain.ErrStoreUnconfigured, "retrieve context", fmt.Errorf("no store endpoint")),
	}, &answerServiceFake{}, nil, nil, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/context/retrieve", `{"query":"anything"}`)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestAugmentPromptReturnsPrompt(t *testing.T) {
	rt := NewRouter(&contextServiceFake{
		prompt: "## Retrieved Context for: q\n\n## User Question\n\nq",
	}, &answerServiceFake{}, nil, nil, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/prompt/augment", `{"message":"q"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(payload["prompt"], "## User Question") {
		t.Fatalf("expected augmented prompt, got %q", payload["prompt"])
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{}, nil, nil, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/ask", `{"question":"   "}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskPublishesRunBuiltFromCompleteEvent(t *testing.T) {
	publisher := &publisherFake{}
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{
		answer: &domain.Answer{
			Text:       "grounded answer",
			Sources:    []string{"a.md", "b.md"},
			SubQueries: []string{"sub one", "sub two"},
		},
		events: []domain.ProgressEvent{
			{Stage: domain.StageDecomposition, Message: "decomposed into 2 sub-queries"},
			{Stage: domain.StageComplete, Message: "retrieved 3 results in 42ms", Data: map[string]any{
				"total_results": 3,
				"source_count":  2,
				"elapsed_ms":    int64(42),
			}},
		},
	}, nil, publisher, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/ask", `{"question":"how deep is the ocean"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	published := publisher.published()
	if len(published) != 1 {
		t.Fatalf("expected 1 published run, got %d", len(published))
	}
	record := published[0]
	if record.TotalResults != 3 || record.ProcessingTimeMs != 42 {
		t.Fatalf("unexpected run record: %+v", record)
	}
	if record.SourceCount != 2 || record.ContextEmpty {
		t.Fatalf("unexpected run record: %+v", record)
	}
}

func TestAskMapsTemporaryErrorTo503(t *testing.T) {
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{
		err: domain.WrapError(domain.ErrTemporary, "generate answer", fmt.Errorf("backend down")),
	}, nil, nil, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/ask", `{"question":"anything"}`)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestListRunsWithoutStoreReturns503(t *testing.T) {
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{}, nil, nil, nil, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestListRunsReturnsRecords(t *testing.T) {
	store := &runStoreFake{records: []domain.RunRecord{
		{ID: "run-1", Query: "q", CreatedAt: time.Now().UTC()},
	}}
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{}, store, nil, nil, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=5", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var payload struct {
		Runs []domain.RunRecord `json:"runs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Runs) != 1 || payload.Runs[0].ID != "run-1" {
		t.Fatalf("unexpected runs payload: %+v", payload.Runs)
	}
}

func TestListRunsRejectsInvalidLimit(t *testing.T) {
	store := &runStoreFake{}
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{}, store, nil, nil, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=zero", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
