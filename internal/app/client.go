package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the Ollama daemon API root on the local machine.
	DefaultBaseURL = "http://127.0.0.1:11434/api"

	probeTimeout = 5 * time.Second
	listTimeout  = 10 * time.Second
)

// OllamaClient is a stateless, typed HTTP client for the local Ollama
// daemon. It translates transport and status failures into the error
// taxonomy in errors.go and never touches coordinator or session state.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOllamaClient(baseURL string) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OllamaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// CheckConnection probes the daemon with a bounded timeout. Any failure,
// including timeout, yields false; it never returns an error.
func (c *OllamaClient) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// ListModels fetches the installed models from /tags.
func (c *OllamaClient) ListModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var result modelListResponse
	if err := c.getJSON(ctx, "/tags", &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// ListRunningModels fetches the currently loaded models from /ps.
func (c *OllamaClient) ListRunningModels(ctx context.Context) ([]RunningModel, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var result runningModelListResponse
	if err := c.getJSON(ctx, "/ps", &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// PullModel starts a model download and returns a channel of progress
// updates. The channel is closed when the daemon's stream ends; an abnormal
// end delivers a final update with Err set. Cancel ctx to abort the pull.
func (c *OllamaClient) PullModel(ctx context.Context, name string) (<-chan PullUpdate, error) {
	body, err := json.Marshal(pullRequest{Model: name, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pull", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("failed to pull model: server returned status code %d", resp.StatusCode)}
	}

	updates := make(chan PullUpdate)
	go func() {
		defer close(updates)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var event struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			}
			if err := json.Unmarshal(line, &event); err != nil {
				updates <- PullUpdate{Err: &DecodeError{Err: err}}
				return
			}
			if event.Error != "" {
				updates <- PullUpdate{Err: &APIError{Status: resp.StatusCode, Message: event.Error}}
				return
			}
			status := event.Status
			if status == "" {
				status = "Unknown status"
			}
			select {
			case updates <- PullUpdate{Status: status}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			updates <- PullUpdate{Err: &NetworkError{Err: err}}
		}
	}()
	return updates, nil
}

// DeleteModel removes an installed model.
func (c *OllamaClient) DeleteModel(ctx context.Context, name string) error {
	body, err := json.Marshal(deleteRequest{Model: name})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/delete", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

// Chat sends the full message history to the model and returns its single
// non-streaming reply. options carries generation parameters; nil keys fall
// back to the daemon's defaults.
func (c *OllamaClient) Chat(ctx context.Context, model string, messages []ChatMessage, options map[string]any) (*ChatResponse, error) {
	if options == nil {
		options = map[string]any{}
	}
	wire := make([]apiMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, apiMessage{Role: m.Role, Content: m.Content})
	}

	var result ChatResponse
	if err := c.postJSON(ctx, "/chat", chatRequest{
		Model:    model,
		Messages: wire,
		Stream:   false,
		Options:  options,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Generate runs a one-shot prompt completion against /generate.
func (c *OllamaClient) Generate(ctx context.Context, model, prompt string) (*GenerateResponse, error) {
	var result GenerateResponse
	if err := c.postJSON(ctx, "/generate", generateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{},
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LoadModel asks the daemon to load a model into memory. There is no
// dedicated endpoint; an empty generate request loads the model and leaves
// it resident for the daemon's default keep-alive.
func (c *OllamaClient) LoadModel(ctx context.Context, name string) error {
	return c.postJSON(ctx, "/generate", generateRequest{Model: name}, nil)
}

// UnloadModel evicts a model by issuing a generate request with a zero
// keep-alive.
func (c *OllamaClient) UnloadModel(ctx context.Context, name string) error {
	zero := 0
	return c.postJSON(ctx, "/generate", generateRequest{Model: name, KeepAlive: &zero}, nil)
}

func (c *OllamaClient) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{Status: resp.StatusCode}
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &DecodeError{Err: err}
		}
	}
	return nil
}

func (c *OllamaClient) postJSON(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &APIError{Status: resp.StatusCode}
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &DecodeError{Err: err}
		}
	}
	return nil
}
