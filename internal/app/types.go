package app

import (
	"time"

	"github.com/google/uuid"
)

// Model is an installed model as reported by the daemon's /tags endpoint.
// The name (family:tag) is the unique identity across both the installed
// and running collections.
type Model struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families,omitempty"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// RunningModel is a loaded model from /ps, with its VRAM footprint and the
// expiry the daemon assigned it. A model absent from the latest /ps response
// is simply not running; there is no terminal state to track.
type RunningModel struct {
	Name      string       `json:"name"`
	Model     string       `json:"model"`
	Size      int64        `json:"size"`
	Digest    string       `json:"digest"`
	Details   ModelDetails `json:"details"`
	ExpiresAt time.Time    `json:"expires_at"`
	SizeVRAM  int64        `json:"size_vram"`
}

type modelListResponse struct {
	Models []Model `json:"models"`
}

type runningModelListResponse struct {
	Models []RunningModel `json:"models"`
}

// ChatMessage is one turn of a conversation. Messages are append-only and
// immutable once created; they are removed only by an explicit chat clear.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // user|assistant|system
	Content   string    `json:"content"`
	ModelName string    `json:"model_name"`
	CreatedAt time.Time `json:"created_at"`
}

func NewChatMessage(role, content, modelName string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		ModelName: modelName,
		CreatedAt: time.Now(),
	}
}

// Wire types for the daemon API.

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []apiMessage   `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options"`
}

// ChatResponse is the daemon's non-streaming /chat reply.
type ChatResponse struct {
	Model         string     `json:"model"`
	CreatedAt     time.Time  `json:"created_at"`
	Message       apiMessage `json:"message"`
	Done          bool       `json:"done"`
	TotalDuration int64      `json:"total_duration,omitempty"`
}

// Content returns the assistant text of the response.
func (r *ChatResponse) Content() string { return r.Message.Content }

type generateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt,omitempty"`
	Stream    bool           `json:"stream"`
	Options   map[string]any `json:"options,omitempty"`
	KeepAlive *int           `json:"keep_alive,omitempty"`
}

// GenerateResponse is the daemon's non-streaming /generate reply.
type GenerateResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Response  string    `json:"response"`
	Done      bool      `json:"done"`
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type deleteRequest struct {
	Model string `json:"model"`
}

// PullUpdate is one element of a pull progress stream. Err is set on the
// final update when the stream ends abnormally; otherwise Status carries the
// daemon's latest free-text status for the download.
type PullUpdate struct {
	Status string
	Err    error
}
