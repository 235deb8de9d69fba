package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestSession(t *testing.T, backend *fakeBackend) (*ChatSession, *SQLiteMessageStore) {
	t.Helper()
	store, err := NewSQLiteMessageStore(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewChatSession(backend, store, zerolog.Nop()), store
}

func TestSendAppendsAndPersistsBothTurns(t *testing.T) {
	backend := &fakeBackend{}
	backend.chatFn = func(ctx context.Context, model string, messages []ChatMessage, options map[string]any) (*ChatResponse, error) {
		if len(messages) != 1 || messages[0].Role != "user" {
			t.Errorf("unexpected history: %+v", messages)
		}
		return &ChatResponse{Message: apiMessage{Role: "assistant", Content: "hello back"}, Done: true}, nil
	}
	session, store := newTestSession(t, backend)
	session.SelectModel(testModel("llama3:8b"))

	session.Send(context.Background(), "hello")

	msgs := session.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant, got %d messages", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "hello back" {
		t.Fatalf("assistant content = %q", msgs[1].Content)
	}
	if session.State() != ChatIdle {
		t.Fatalf("session should return to idle")
	}

	persisted, err := store.Fetch("llama3:8b")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(persisted))
	}
}

func TestSendFallsBackToInputBuffer(t *testing.T) {
	backend := &fakeBackend{}
	session, _ := newTestSession(t, backend)
	session.SelectModel(testModel("llama3:8b"))
	session.SetInput("from the buffer")

	session.Send(context.Background(), "")

	if session.Input() != "" {
		t.Fatalf("input buffer should be cleared after send")
	}
	msgs := session.Messages()
	if len(msgs) == 0 || msgs[0].Content != "from the buffer" {
		t.Fatalf("buffer text not sent: %+v", msgs)
	}
}

func TestSendIsNoOpWithoutTextOrModel(t *testing.T) {
	backend := &fakeBackend{}
	session, _ := newTestSession(t, backend)

	// No model selected.
	session.Send(context.Background(), "hello")
	// Whitespace only.
	session.SelectModel(testModel("llama3:8b"))
	session.SetInput("   \n\t ")
	session.Send(context.Background(), "")

	backend.mu.Lock()
	calls := backend.chatCalls
	backend.mu.Unlock()
	if calls != 0 {
		t.Fatalf("expected no dispatch, got %d", calls)
	}
	if len(session.Messages()) != 0 {
		t.Fatalf("log should be empty")
	}
}

func TestSendRejectsReentrantSends(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	backend := &fakeBackend{}
	backend.chatFn = func(ctx context.Context, model string, messages []ChatMessage, options map[string]any) (*ChatResponse, error) {
		close(started)
		<-release
		return &ChatResponse{Message: apiMessage{Role: "assistant", Content: "done"}}, nil
	}
	session, _ := newTestSession(t, backend)
	session.SelectModel(testModel("llama3:8b"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		session.Send(context.Background(), "first")
	}()
	<-started

	// Second send while the first is pending: silently dropped, not queued.
	session.Send(context.Background(), "second")
	close(release)
	wg.Wait()

	backend.mu.Lock()
	calls := backend.chatCalls
	backend.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one dispatched request, got %d", calls)
	}
	msgs := session.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant only, got %d", len(msgs))
	}
}

func TestSendFailureKeepsUserMessageAndReportsError(t *testing.T) {
	backend := &fakeBackend{}
	backend.chatFn = func(ctx context.Context, model string, messages []ChatMessage, options map[string]any) (*ChatResponse, error) {
		return nil, &APIError{Status: 500}
	}
	session, _ := newTestSession(t, backend)
	session.SelectModel(testModel("llama3:8b"))

	session.Send(context.Background(), "hello")

	if session.State() != ChatIdle {
		t.Fatalf("session must return to idle after failure")
	}
	if msg := session.ErrorMessage(); !strings.Contains(msg, "500") {
		t.Fatalf("error message = %q, want status code", msg)
	}
	msgs := session.Messages()
	if len(msgs) != 1 || msgs[0].Role != "user" {
		t.Fatalf("only the user message should remain: %+v", msgs)
	}
}

func TestSendSerializesCurrentParams(t *testing.T) {
	var got map[string]any
	backend := &fakeBackend{}
	backend.chatFn = func(ctx context.Context, model string, messages []ChatMessage, options map[string]any) (*ChatResponse, error) {
		got = options
		return &ChatResponse{Message: apiMessage{Role: "assistant", Content: "ok"}}, nil
	}
	session, _ := newTestSession(t, backend)
	session.SelectModel(testModel("llama3:8b"))

	session.Send(context.Background(), "defaults")
	if got["temperature"] != 0.7 || got["num_predict"] != 2048 || got["top_p"] != 0.9 {
		t.Fatalf("default params not serialized: %v", got)
	}

	params := session.Params()
	params.Temperature = 0.2
	params.MaxTokens = 512
	session.SetParams(params)

	session.Send(context.Background(), "tuned")
	if got["temperature"] != 0.2 || got["num_predict"] != 512 {
		t.Fatalf("updated params not serialized: %v", got)
	}
}

func TestClearChatEmptiesLogAndStoreTogether(t *testing.T) {
	backend := &fakeBackend{}
	session, store := newTestSession(t, backend)
	session.SelectModel(testModel("llama3:8b"))
	session.Send(context.Background(), "one")
	session.Send(context.Background(), "two")

	session.ClearChat()

	if len(session.Messages()) != 0 {
		t.Fatalf("in-memory log not cleared")
	}
	persisted, err := store.Fetch("llama3:8b")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("store not cleared: %d messages remain", len(persisted))
	}
}

func TestClearMessagesLeavesStoreIntact(t *testing.T) {
	backend := &fakeBackend{}
	session, store := newTestSession(t, backend)
	session.SelectModel(testModel("llama3:8b"))
	session.Send(context.Background(), "hello")

	session.ClearMessages()

	if len(session.Messages()) != 0 {
		t.Fatalf("in-memory log not cleared")
	}
	persisted, _ := store.Fetch("llama3:8b")
	if len(persisted) == 0 {
		t.Fatalf("store must not be touched by ClearMessages")
	}
}

func TestLoadHistoryFiltersByModelAndOrders(t *testing.T) {
	backend := &fakeBackend{}
	session, store := newTestSession(t, backend)

	for _, m := range []ChatMessage{
		NewChatMessage("user", "first", "llama3:8b"),
		NewChatMessage("assistant", "second", "llama3:8b"),
		NewChatMessage("user", "other model", "mistral:7b"),
	} {
		if err := store.Insert(m); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	session.LoadHistory("llama3:8b")

	msgs := session.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages for llama3:8b, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Fatalf("history out of order: %+v", msgs)
	}
}

type failingStore struct{}

func (failingStore) Insert(ChatMessage) error          { return errors.New("disk full") }
func (failingStore) Delete(ChatMessage) error          { return errors.New("disk full") }
func (failingStore) Fetch(string) ([]ChatMessage, error) { return nil, errors.New("disk full") }

func TestLoadHistoryFailureLeavesLogUnchanged(t *testing.T) {
	backend := &fakeBackend{}
	session := NewChatSession(backend, failingStore{}, zerolog.Nop())
	session.SelectModel(testModel("llama3:8b"))
	session.Send(context.Background(), "hello")
	before := len(session.Messages())

	session.LoadHistory("llama3:8b")

	if len(session.Messages()) != before {
		t.Fatalf("log must be unchanged after a store failure")
	}
	if msg := session.ErrorMessage(); !strings.Contains(msg, "Failed to load messages") {
		t.Fatalf("error message = %q", msg)
	}
}

func TestSelectModelKeepsHistory(t *testing.T) {
	backend := &fakeBackend{}
	session, _ := newTestSession(t, backend)
	session.SelectModel(testModel("llama3:8b"))
	session.Send(context.Background(), "hello")

	session.SelectModel(testModel("mistral:7b"))

	msgs := session.Messages()
	if len(msgs) != 2 {
		t.Fatalf("switching model must keep history, got %d messages", len(msgs))
	}
	if msgs[0].ModelName != "llama3:8b" {
		t.Fatalf("messages keep the model that was active when created")
	}
}

func TestAddSystemMessagePersistsWithoutDispatch(t *testing.T) {
	backend := &fakeBackend{}
	session, store := newTestSession(t, backend)
	session.SelectModel(testModel("llama3:8b"))

	session.AddSystemMessage("You are terse.")

	backend.mu.Lock()
	calls := backend.chatCalls
	backend.mu.Unlock()
	if calls != 0 {
		t.Fatalf("system message must not hit the daemon")
	}
	msgs := session.Messages()
	if len(msgs) != 1 || msgs[0].Role != "system" {
		t.Fatalf("unexpected log: %+v", msgs)
	}
	persisted, _ := store.Fetch("llama3:8b")
	if len(persisted) != 1 {
		t.Fatalf("system message not persisted")
	}
}
