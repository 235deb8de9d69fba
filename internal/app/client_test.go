package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListModelsDecodesDaemonPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[{
			"name":"llama3:8b",
			"modified_at":"2025-04-08T10:15:04.123456-07:00",
			"size":4661224676,
			"digest":"sha256:abc",
			"details":{"format":"gguf","family":"llama","parameter_size":"8B","quantization_level":"Q4_0"}
		}]}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	m := models[0]
	if m.Name != "llama3:8b" || m.Size != 4661224676 || m.Digest != "sha256:abc" {
		t.Fatalf("unexpected model: %+v", m)
	}
	if m.Details.ParameterSize != "8B" || m.Details.QuantizationLevel != "Q4_0" {
		t.Fatalf("details not decoded: %+v", m.Details)
	}
	if m.ModifiedAt.IsZero() {
		t.Fatalf("modified_at not decoded")
	}
}

func TestListModelsSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	_, err := client.ListModels(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", apiErr.Status)
	}
}

func TestListModelsSurfacesDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models": "not a list"}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	_, err := client.ListModels(context.Background())
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T: %v", err, err)
	}
}

func TestListRunningModelsDecodesVRAMAndExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ps" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[{
			"name":"llama3:8b","model":"llama3:8b","size":5137025024,"digest":"sha256:abc",
			"details":{"format":"gguf","family":"llama","parameter_size":"8B","quantization_level":"Q4_0"},
			"expires_at":"2025-04-08T10:20:04.398589-07:00","size_vram":5137025024
		}]}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	running, err := client.ListRunningModels(context.Background())
	if err != nil {
		t.Fatalf("list running: %v", err)
	}
	if len(running) != 1 {
		t.Fatalf("expected 1 running model, got %d", len(running))
	}
	if running[0].SizeVRAM != 5137025024 || running[0].ExpiresAt.IsZero() {
		t.Fatalf("vram/expiry not decoded: %+v", running[0])
	}
}

func TestCheckConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[]}`)
	}))
	client := NewOllamaClient(srv.URL + "/api")
	if !client.CheckConnection(context.Background()) {
		t.Fatalf("expected reachable daemon")
	}
	srv.Close()
	if client.CheckConnection(context.Background()) {
		t.Fatalf("expected probe failure after shutdown")
	}
}

func TestChatSendsFullHistoryNonStreaming(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"model":"llama3:8b","created_at":"2025-04-08T10:15:04.123456-07:00","message":{"role":"assistant","content":"hi there"},"done":true}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	history := []ChatMessage{
		NewChatMessage("user", "hello", "llama3:8b"),
		NewChatMessage("assistant", "hi", "llama3:8b"),
		NewChatMessage("user", "again", "llama3:8b"),
	}
	resp, err := client.Chat(context.Background(), "llama3:8b", history, map[string]any{"temperature": 0.7})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content() != "hi there" {
		t.Fatalf("content = %q", resp.Content())
	}
	if got.Stream {
		t.Fatalf("chat must be non-streaming")
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected full history of 3 messages, got %d", len(got.Messages))
	}
	if got.Options["temperature"] == nil {
		t.Fatalf("options not forwarded: %v", got.Options)
	}
}

func TestChatNon200IsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	_, err := client.Chat(context.Background(), "llama3:8b", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 500 {
		t.Fatalf("expected APIError 500, got %v", err)
	}
}

func TestDeleteModelUsesDeleteVerb(t *testing.T) {
	var method string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	if err := client.DeleteModel(context.Background(), "mistral:7b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if method != http.MethodDelete {
		t.Fatalf("method = %s, want DELETE", method)
	}
	var req deleteRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Model != "mistral:7b" {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestLoadAndUnloadModelAreGenerateRequests(t *testing.T) {
	var bodies [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, b)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	if err := client.LoadModel(context.Background(), "llama3:8b"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := client.UnloadModel(context.Background(), "llama3:8b"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 generate calls, got %d", len(bodies))
	}
	var load, unload map[string]any
	if err := json.Unmarshal(bodies[0], &load); err != nil {
		t.Fatalf("decode load body: %v", err)
	}
	if err := json.Unmarshal(bodies[1], &unload); err != nil {
		t.Fatalf("decode unload body: %v", err)
	}
	if _, ok := load["keep_alive"]; ok {
		t.Fatalf("load must not send keep_alive: %s", bodies[0])
	}
	if v, ok := unload["keep_alive"]; !ok || v != float64(0) {
		t.Fatalf("unload must send keep_alive 0: %s", bodies[1])
	}
}

func TestPullModelStreamsStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		flusher := w.(http.Flusher)
		for _, status := range []string{"pulling manifest", "downloading", "success"} {
			fmt.Fprintf(w, "{\"status\":%q}\n", status)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	updates, err := client.PullModel(context.Background(), "mistral:7b")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	var statuses []string
	for u := range updates {
		if u.Err != nil {
			t.Fatalf("unexpected stream error: %v", u.Err)
		}
		statuses = append(statuses, u.Status)
	}
	want := []string{"pulling manifest", "downloading", "success"}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("statuses[%d] = %q, want %q", i, statuses[i], want[i])
		}
	}
}

func TestPullModelMidStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"status":"downloading"}`)
		flusher.Flush()
		fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	updates, err := client.PullModel(context.Background(), "nope:latest")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	var last PullUpdate
	for u := range updates {
		last = u
	}
	if last.Err == nil {
		t.Fatalf("expected terminal error update")
	}
}

func TestPullModelNon200FailsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL + "/api")
	_, err := client.PullModel(context.Background(), "mistral:7b")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}
