package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "gpt-test" {
			t.Errorf("unexpected model %v", req["model"])
		}
		format, _ := req["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Errorf("json mode not requested: %v", req["response_format"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"results\": []}"}}]
		}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	out, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"results": []}` {
		t.Fatalf("unexpected content %q", out)
	}
}

func TestOpenAIRateLimitSurfacesStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	_, err = client.Complete(context.Background(), "system", "user")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.HTTPStatusCode() != http.StatusTooManyRequests {
		t.Fatalf("unexpected status %d", statusErr.Code)
	}
}

func TestOpenAIConfigValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAIClient(OpenAIConfig{Model: "m"}); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected missing model error")
	}
}

type geminiWireRequest struct {
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseMIMEType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

func TestGeminiComplete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "g-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		var req geminiWireRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.GenerationConfig.ResponseMIMEType != "application/json" {
			t.Errorf("json mode not requested")
		}
		if req.SystemInstruction == nil || len(req.SystemInstruction.Parts) == 0 || req.SystemInstruction.Parts[0].Text != "system" {
			t.Errorf("system instruction missing")
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) == 0 || req.Contents[0].Parts[0].Text != "user" {
			t.Errorf("user content missing")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "[{\"post_id\":"}, {"text": " 0}]"}]}, "finishReason": "STOP"}]}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(GeminiConfig{APIKey: "g-key", Model: "gemini-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}

	out, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `[{"post_id": 0}]` {
		t.Fatalf("unexpected content %q", out)
	}
}

func TestGeminiErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "quota",
			status: http.StatusTooManyRequests,
			body:   `{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`,
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Code != http.StatusTooManyRequests {
					t.Fatalf("expected 429 StatusError, got %v", err)
				}
				if !strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
					t.Fatalf("provider message lost: %v", err)
				}
			},
		},
		{
			name:   "blocked",
			status: http.StatusOK,
			body:   `{"promptFeedback": {"blockReason": "SAFETY"}}`,
			check: func(t *testing.T, err error) {
				if err == nil || !strings.Contains(err.Error(), "SAFETY") {
					t.Fatalf("expected blocked error, got %v", err)
				}
			},
		},
		{
			name:   "empty",
			status: http.StatusOK,
			body:   `{"candidates": []}`,
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Fatal("expected empty candidates error")
				}
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client, err := NewGeminiClient(GeminiConfig{APIKey: "k", Model: "m", BaseURL: server.URL})
			if err != nil {
				t.Fatalf("NewGeminiClient: %v", err)
			}
			_, err = client.Complete(context.Background(), "s", "u")
			tc.check(t, err)
		})
	}
}
