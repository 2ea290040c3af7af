package httpadapter

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/antonkh/ragline/internal/core/domain"
)

func TestAskStreamEmitsProgressAnswerAndDone(t *testing.T) {
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{
		answer: &domain.Answer{
			Text:       "the answer",
			Sources:    []string{"a.md"},
			SubQueries: []string{"sub one"},
		},
		events: []domain.ProgressEvent{
			{Stage: domain.StageDecomposition, Message: "decomposed into 1 sub-queries"},
			{Stage: domain.StageRetrieval, Message: "searching 1/1"},
			{Stage: domain.StageComplete, Message: "retrieved 1 results in 5ms", Data: map[string]any{
				"total_results": 1,
				"elapsed_ms":    int64(5),
			}},
		},
	}, nil, nil, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/ask/stream", `{"question":"what now"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", got)
	}

	body := res.Body.String()
	for _, want := range []string{
		`"type":"progress"`,
		`"stage":"decomposition"`,
		`"stage":"retrieval"`,
		`"stage":"complete"`,
		`"type":"answer"`,
		`"the answer"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream missing %q:\n%s", want, body)
		}
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("stream must end with DONE frame:\n%s", body)
	}

	answerIdx := strings.Index(body, `"type":"answer"`)
	completeIdx := strings.Index(body, `"stage":"complete"`)
	if completeIdx > answerIdx {
		t.Fatalf("progress frames must precede the answer frame:\n%s", body)
	}
}

func TestAskStreamSendsErrorFrame(t *testing.T) {
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{
		err: domain.WrapError(domain.ErrTemporary, "generate answer", fmt.Errorf("backend down")),
	}, nil, nil, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/ask/stream", `{"question":"what now"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("streaming errors keep the 200 status, got %d", res.Code)
	}

	body := res.Body.String()
	if !strings.Contains(body, `"type":"error"`) {
		t.Fatalf("expected error frame:\n%s", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("stream must end with DONE frame:\n%s", body)
	}
}

func TestAskStreamRequiresQuestion(t *testing.T) {
	rt := NewRouter(&contextServiceFake{}, &answerServiceFake{}, nil, nil, nil, RouterConfig{})

	res := postJSON(t, rt.Handler(), "/v1/ask/stream", `{"question":""}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
