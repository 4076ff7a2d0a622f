package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewHTTPClientFromEnvRequiresBaseURL(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "")

	if _, err := NewHTTPClientFromEnv(); err == nil {
		t.Fatal("expected an error without LLM_BASE_URL")
	}
}

func TestGenerate(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "three squats"}},
			},
		})
	}))
	defer srv.Close()

	t.Setenv("LLM_BASE_URL", srv.URL)
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("LLM_MODEL", "test-model")

	client, err := NewHTTPClientFromEnv()
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	out, err := client.Generate(context.Background(), "make a challenge", "you are a coach")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "three squats" {
		t.Errorf("got %q, want %q", out, "three squats")
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("got auth header %q", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("got model %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("LLM_BASE_URL", srv.URL)
	client, err := NewHTTPClientFromEnv()
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if _, err := client.Generate(context.Background(), "p", "s"); err == nil {
		t.Fatal("expected an error on non-200 status")
	}
}

func TestGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	t.Setenv("LLM_BASE_URL", srv.URL)
	client, err := NewHTTPClientFromEnv()
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	if _, err := client.Generate(context.Background(), "p", "s"); err == nil {
		t.Fatal("expected an error on empty choices")
	}
}
