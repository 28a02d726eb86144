package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubClient struct {
	reply string
	err   error
}

func (s *stubClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	return s.reply, s.err
}

func newTestExtractor(t *testing.T, client AIClient) *Extractor {
	t.Helper()
	classifier, err := NewClassifier("")
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	return NewExtractor(nil, client, classifier)
}

func TestAnalyzeTextParsesModelReply(t *testing.T) {
	client := &stubClient{reply: `{
		"description": "Buraco profundo na pista",
		"category": "Buraco na via",
		"address": "Rua Sete de Setembro, 120",
		"neighborhood": "Centro",
		"urgency": "alta",
		"suggested_reply": "Entendi! Agora me envie uma foto do buraco."
	}`}
	result := newTestExtractor(t, client).AnalyzeText(context.Background(), "buraco na rua sete", "")

	if result.Description != "Buraco profundo na pista" {
		t.Errorf("Description = %q", result.Description)
	}
	if result.Category != "Buraco na via" || result.Neighborhood != "Centro" {
		t.Errorf("unexpected fields: %+v", result)
	}
	if result.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", result.Confidence)
	}
}

func TestAnalyzeTextStripsCodeFences(t *testing.T) {
	client := &stubClient{reply: "```json\n{\"description\": \"Poste sem luz\"}\n```"}
	result := newTestExtractor(t, client).AnalyzeText(context.Background(), "poste sem luz", "")
	if result.Description != "Poste sem luz" {
		t.Errorf("Description = %q, want fence-stripped value", result.Description)
	}
}

func TestAnalyzeTextFallsBackOnClientError(t *testing.T) {
	client := &stubClient{err: errors.New("timeout")}
	result := newTestExtractor(t, client).AnalyzeText(context.Background(), "buraco na avenida", "")
	if result.Category != "Buraco na via" {
		t.Errorf("fallback Category = %q, want keyword match", result.Category)
	}
	if result.Confidence != 0.3 {
		t.Errorf("fallback Confidence = %v, want 0.3", result.Confidence)
	}
}

func TestAnalyzeTextFallsBackOnGarbageReply(t *testing.T) {
	client := &stubClient{reply: "desculpe, nao posso ajudar com isso"}
	result := newTestExtractor(t, client).AnalyzeText(context.Background(), "lampada queimada no poste", "")
	if result.Category != "Iluminacao publica" {
		t.Errorf("fallback Category = %q", result.Category)
	}
}

func TestAnalyzeAudioTranscriptBecomesDescription(t *testing.T) {
	client := &stubClient{reply: `{"transcript": "tem um alagamento aqui na rua"}`}
	result := newTestExtractor(t, client).AnalyzeAudio(context.Background(), []byte("ogg"), "audio/ogg", "")
	if result.Description != "tem um alagamento aqui na rua" {
		t.Errorf("Description = %q, want the transcript", result.Description)
	}
}

func TestHTTPClientCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "gpt-test" {
			t.Errorf("model = %v", req["model"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"description":"ok"}`}},
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(nil, srv.URL, "test-key", "gpt-test", 0)
	raw, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "oi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if raw != `{"description":"ok"}` {
		t.Errorf("raw = %q", raw)
	}
}

func TestHTTPClientNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(nil, srv.URL, "", "gpt-test", 0)
	if _, err := client.Complete(context.Background(), nil); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestDataURL(t *testing.T) {
	got := DataURL([]byte{1, 2, 3}, "image/png")
	if got != "data:image/png;base64,AQID" {
		t.Errorf("DataURL = %q", got)
	}
	if got := DataURL(nil, ""); got != "data:application/octet-stream;base64," {
		t.Errorf("empty mime DataURL = %q", got)
	}
}

func TestAudioFormat(t *testing.T) {
	tests := map[string]string{
		"audio/ogg; codecs=opus": "ogg",
		"audio/wav":              "wav",
		"audio/mpeg":             "mp3",
		"":                       "mp3",
	}
	for mime, want := range tests {
		if got := audioFormat(mime); got != want {
			t.Errorf("audioFormat(%q) = %q, want %q", mime, got, want)
		}
	}
}
