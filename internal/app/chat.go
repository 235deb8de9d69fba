package app

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ChatState is the session's request state. There is no cancelling state;
// a dispatched send runs to completion or failure.
type ChatState int

const (
	ChatIdle ChatState = iota
	ChatSending
)

// GenParams are the per-session generation parameters serialized into each
// chat request at send time. Changing them never affects an in-flight send.
type GenParams struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

func DefaultGenParams() GenParams {
	return GenParams{
		Temperature: 0.7,
		MaxTokens:   2048,
		TopP:        0.9,
	}
}

// options maps the parameters onto the daemon's option keys.
func (p GenParams) options() map[string]any {
	return map[string]any{
		"temperature":       p.Temperature,
		"num_predict":       p.MaxTokens,
		"top_p":             p.TopP,
		"frequency_penalty": p.FrequencyPenalty,
		"presence_penalty":  p.PresencePenalty,
	}
}

// ChatSession drives one conversation against the daemon: an append-only
// message log, an input buffer, and an Idle/Sending state machine that
// admits at most one in-flight request. State is guarded by one mutex;
// readers get copies.
type ChatSession struct {
	client Backend
	store  MessageStore
	log    zerolog.Logger

	mu           sync.Mutex
	state        ChatState
	messages     []ChatMessage
	input        string
	errorMessage string
	model        *Model
	params       GenParams
	observers    []func()
}

func NewChatSession(client Backend, store MessageStore, log zerolog.Logger) *ChatSession {
	return &ChatSession{
		client: client,
		store:  store,
		log:    log,
		params: DefaultGenParams(),
	}
}

// Subscribe registers a callback invoked after every published state
// change. Callbacks run outside the session's lock and must not block.
func (s *ChatSession) Subscribe(fn func()) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *ChatSession) publish() {
	s.mu.Lock()
	observers := make([]func(), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// SelectModel sets the active model. Existing messages are kept; switching
// model mid-conversation leaves history tagged with whichever model was
// active when each message was created.
func (s *ChatSession) SelectModel(model Model) {
	s.mu.Lock()
	s.model = &model
	s.mu.Unlock()
	s.publish()
}

// SelectedModel returns the active model, or nil.
func (s *ChatSession) SelectedModel() *Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return nil
	}
	m := *s.model
	return &m
}

// LoadHistory replaces the in-memory log with all persisted messages for
// modelName, ordered oldest first. A store failure surfaces as an error
// message and leaves the log unchanged.
func (s *ChatSession) LoadHistory(modelName string) {
	msgs, err := s.store.Fetch(modelName)
	s.mu.Lock()
	if err != nil {
		s.errorMessage = "Failed to load messages: " + err.Error()
	} else {
		s.messages = msgs
	}
	s.mu.Unlock()
	s.publish()
	if err != nil {
		s.log.Error().Err(err).Str("model", modelName).Msg("load history failed")
	}
}

// Send dispatches one chat turn. The effective text is the argument or,
// when empty, the current input buffer. Whitespace-only text, a missing
// model selection, or a send already in flight make the call a silent
// no-op. The full session history plus the current generation parameters
// go out with every request; the daemon is stateless per call.
//
// Send blocks until the daemon replies; run it from its own goroutine.
func (s *ChatSession) Send(ctx context.Context, text string) {
	s.mu.Lock()
	if s.state == ChatSending {
		s.mu.Unlock()
		return
	}
	if strings.TrimSpace(text) == "" {
		text = s.input
	}
	text = strings.TrimSpace(text)
	if text == "" || s.model == nil {
		s.mu.Unlock()
		return
	}

	modelName := s.model.Name
	userMsg := NewChatMessage("user", text, modelName)
	s.messages = append(s.messages, userMsg)
	s.input = ""
	s.state = ChatSending
	s.errorMessage = ""
	history := make([]ChatMessage, len(s.messages))
	copy(history, s.messages)
	options := s.params.options()
	if err := s.store.Insert(userMsg); err != nil {
		s.log.Warn().Err(err).Msg("persist user message failed")
	}
	s.mu.Unlock()
	s.publish()

	resp, err := s.client.Chat(ctx, modelName, history, options)

	s.mu.Lock()
	if err != nil {
		s.errorMessage = "Failed to get response: " + err.Error()
		s.state = ChatIdle
		s.mu.Unlock()
		s.publish()
		s.log.Error().Err(err).Str("model", modelName).Msg("chat failed")
		return
	}
	assistantMsg := NewChatMessage("assistant", resp.Content(), modelName)
	s.messages = append(s.messages, assistantMsg)
	s.state = ChatIdle
	if err := s.store.Insert(assistantMsg); err != nil {
		s.log.Warn().Err(err).Msg("persist assistant message failed")
	}
	s.mu.Unlock()
	s.publish()
}

// ClearChat deletes the persisted messages for the active model and empties
// the in-memory log in one step; no observer sees the two disagree.
func (s *ChatSession) ClearChat() {
	s.mu.Lock()
	if s.model == nil {
		s.mu.Unlock()
		return
	}
	var failed error
	for _, msg := range s.messages {
		if err := s.store.Delete(msg); err != nil {
			failed = err
		}
	}
	s.messages = nil
	if failed != nil {
		s.errorMessage = "Failed to clear chat: " + failed.Error()
	}
	s.mu.Unlock()
	s.publish()
}

// ClearMessages empties the in-memory log without touching the store. Used
// when discarding a session that was never loaded or saved.
func (s *ChatSession) ClearMessages() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
	s.publish()
}

// AddSystemMessage appends and persists a system message without a daemon
// round trip.
func (s *ChatSession) AddSystemMessage(content string) {
	s.mu.Lock()
	if s.model == nil {
		s.mu.Unlock()
		return
	}
	msg := NewChatMessage("system", content, s.model.Name)
	s.messages = append(s.messages, msg)
	if err := s.store.Insert(msg); err != nil {
		s.log.Warn().Err(err).Msg("persist system message failed")
	}
	s.mu.Unlock()
	s.publish()
}

// SetInput replaces the input buffer.
func (s *ChatSession) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

// Input returns the current input buffer.
func (s *ChatSession) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Messages returns a copy of the in-memory log.
func (s *ChatSession) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// State returns the session's request state.
func (s *ChatSession) State() ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ErrorMessage returns the most recent send/load error, or "".
func (s *ChatSession) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMessage
}

// Params returns the current generation parameters.
func (s *ChatSession) Params() GenParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParams replaces the generation parameters for subsequent sends.
func (s *ChatSession) SetParams(p GenParams) {
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()
	s.publish()
}
