package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/db/models"
)

type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
	}
}

func (f *fakeStore) Create(ctx context.Context, conv *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *conv
	f.conversations[conv.ID] = &clone
	return nil
}

func (f *fakeStore) ListByProject(ctx context.Context, ownerID, projectID string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]models.Conversation, 0)
	for _, conv := range f.conversations {
		if conv.ProjectID == projectID && conv.OwnerID == ownerID {
			result = append(result, *conv)
		}
	}
	return result, nil
}

func (f *fakeStore) Get(ctx context.Context, ownerID, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return nil, db.ErrNotFound
	}
	clone := *conv
	return &clone, nil
}

func (f *fakeStore) UpdateTitle(ctx context.Context, ownerID, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return db.ErrNotFound
	}
	conv.Title = title
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok || conv.OwnerID != ownerID {
		return db.ErrNotFound
	}
	delete(f.conversations, id)
	delete(f.messages, id)
	return nil
}

func (f *fakeStore) Touch(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.conversations[id]; ok {
		conv.UpdatedAt = at
	}
	return nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *msg
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], &clone)
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]models.Message, 0, len(f.messages[conversationID]))
	for _, msg := range f.messages[conversationID] {
		result = append(result, *msg)
	}
	return result, nil
}

func (f *fakeStore) FinalizeMessage(ctx context.Context, id, content, status string, metadata json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msgs := range f.messages {
		for _, msg := range msgs {
			if msg.ID == id {
				msg.Content = content
				msg.Status = status
				msg.Metadata = metadata
				return nil
			}
		}
	}
	return db.ErrNotFound
}

func (f *fakeStore) DeleteMessage(ctx context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for convID, msgs := range f.messages {
		for i, msg := range msgs {
			if msg.ID != id {
				continue
			}
			conv, ok := f.conversations[convID]
			if !ok || conv.OwnerID != ownerID {
				return db.ErrNotFound
			}
			f.messages[convID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func (f *fakeStore) messagesByRole(conversationID, role string) []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]models.Message, 0)
	for _, msg := range f.messages[conversationID] {
		if msg.Role == role {
			result = append(result, *msg)
		}
	}
	return result
}

type fakeCompleter struct {
	reply   string
	chunks  []string
	err     error
	errAt   int // emit chunks before index errAt, then fail; 0 disables
	block   chan struct{}
	calls   int
	prompts [][]CompletionMessage
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []CompletionMessage, opts CompletionOptions) (*Completion, error) {
	f.calls++
	f.prompts = append(f.prompts, messages)
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Content: f.reply, Model: "test-model", Usage: &CompletionUsage{TotalTokens: 7}}, nil
}

func (f *fakeCompleter) StreamComplete(ctx context.Context, messages []CompletionMessage, opts CompletionOptions, onChunk ChunkFunc) (*Completion, error) {
	f.calls++
	f.prompts = append(f.prompts, messages)
	if f.block != nil {
		<-f.block
	}

	var accumulated strings.Builder
	for i, chunk := range f.chunks {
		if f.errAt > 0 && i == f.errAt {
			return nil, errors.New("stream interrupted")
		}
		accumulated.WriteString(chunk)
		if onChunk != nil {
			if err := onChunk(chunk); err != nil {
				return nil, err
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Content: accumulated.String(), Model: "test-model", Usage: &CompletionUsage{TotalTokens: 7}}, nil
}

func newTestChatService(store *fakeStore, completer *fakeCompleter) *ChatService {
	return NewChatService(store, completer, nil)
}

func seedConversation(t *testing.T, store *fakeStore, title string) *models.Conversation {
	t.Helper()
	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        "conv-1",
		ProjectID: "proj-1",
		OwnerID:   "owner-1",
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Create(context.Background(), conv); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return conv
}

func TestCreateConversationDefaultTitle(t *testing.T) {
	store := newFakeStore()
	svc := newTestChatService(store, &fakeCompleter{})

	conv, err := svc.CreateConversation(context.Background(), "owner-1", "proj-1", "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if conv.Title != models.DefaultConversationTitle {
		t.Fatalf("expected default title, got %q", conv.Title)
	}

	named, err := svc.CreateConversation(context.Background(), "owner-1", "proj-1", "Screening notes")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if named.Title != "Screening notes" {
		t.Fatalf("expected caller title, got %q", named.Title)
	}
}

func TestSendMessageRequiresConversation(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{}
	svc := newTestChatService(store, completer)

	_, err := svc.SendMessage(context.Background(), "owner-1", "", "hello", SendOptions{})
	if !errors.Is(err, ErrNoConversation) {
		t.Fatalf("expected ErrNoConversation, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("expected no completion calls, got %d", completer.calls)
	}
}

func TestSendMessageAutoTitle(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{chunks: []string{"PICO stands for..."}}
	svc := newTestChatService(store, completer)
	seedConversation(t, store, models.DefaultConversationTitle)

	content := "Hello, can you explain PICO?"
	result, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", content, SendOptions{Streaming: true})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}

	if result.Conversation.Title != content {
		t.Fatalf("expected title %q, got %q", content, result.Conversation.Title)
	}

	stored, err := store.Get(context.Background(), "owner-1", "conv-1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if stored.Title != content {
		t.Fatalf("expected persisted title %q, got %q", content, stored.Title)
	}
}

func TestSendMessageAutoTitleTruncates(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{chunks: []string{"ok"}}
	svc := newTestChatService(store, completer)
	seedConversation(t, store, models.DefaultConversationTitle)

	content := strings.Repeat("a", 80)
	result, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", content, SendOptions{Streaming: true})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}

	want := strings.Repeat("a", 50) + "…"
	if result.Conversation.Title != want {
		t.Fatalf("expected truncated title %q, got %q", want, result.Conversation.Title)
	}
}

func TestSendMessageKeepsExplicitTitle(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{chunks: []string{"ok"}}
	svc := newTestChatService(store, completer)
	seedConversation(t, store, "My review chat")

	result, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "first message", SendOptions{Streaming: true})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if result.Conversation.Title != "My review chat" {
		t.Fatalf("expected title untouched, got %q", result.Conversation.Title)
	}
}

func TestSendMessageStreamingAccumulation(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{chunks: []string{"Hel", "lo ", "world"}}
	svc := newTestChatService(store, completer)
	seedConversation(t, store, models.DefaultConversationTitle)

	var seen []string
	result, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "hi", SendOptions{
		Streaming: true,
		OnChunk: func(chunk string) error {
			seen = append(seen, chunk)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}

	if len(seen) != 3 || seen[0] != "Hel" || seen[1] != "lo " || seen[2] != "world" {
		t.Fatalf("unexpected chunk sequence: %v", seen)
	}
	if result.AssistantMessage.Content != "Hello world" {
		t.Fatalf("expected accumulated content, got %q", result.AssistantMessage.Content)
	}
	if result.AssistantMessage.Status != models.MessageStatusComplete {
		t.Fatalf("expected complete status, got %q", result.AssistantMessage.Status)
	}

	assistant := store.messagesByRole("conv-1", models.RoleAssistant)
	if len(assistant) != 1 {
		t.Fatalf("expected exactly one persisted assistant message, got %d", len(assistant))
	}
	if assistant[0].Content != "Hello world" {
		t.Fatalf("expected persisted content %q, got %q", "Hello world", assistant[0].Content)
	}
	if assistant[0].ID != result.AssistantMessage.ID {
		t.Fatalf("placeholder must be finalized in place, not replaced")
	}
}

func TestSendMessageNonStreaming(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{reply: "Here is a summary."}
	svc := newTestChatService(store, completer)
	seedConversation(t, store, models.DefaultConversationTitle)

	result, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "summarize", SendOptions{Streaming: false})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if result.AssistantMessage.Content != "Here is a summary." {
		t.Fatalf("unexpected assistant content %q", result.AssistantMessage.Content)
	}

	assistant := store.messagesByRole("conv-1", models.RoleAssistant)
	if len(assistant) != 1 {
		t.Fatalf("expected one assistant message, got %d", len(assistant))
	}
}

func TestSendMessageStreamErrorKeepsPartial(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{chunks: []string{"partial ", "answer", "never sent"}, errAt: 2}
	svc := newTestChatService(store, completer)
	seedConversation(t, store, "Errored chat")

	_, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "hi", SendOptions{Streaming: true})
	if err == nil {
		t.Fatal("expected stream error")
	}

	assistant := store.messagesByRole("conv-1", models.RoleAssistant)
	if len(assistant) != 1 {
		t.Fatalf("expected one assistant message, got %d", len(assistant))
	}
	if assistant[0].Status != models.MessageStatusFailed {
		t.Fatalf("expected failed status, got %q", assistant[0].Status)
	}
	if assistant[0].Content != "partial answer" {
		t.Fatalf("expected partial content preserved, got %q", assistant[0].Content)
	}
}

func TestSendMessageInFlightGuard(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{chunks: []string{"slow reply"}, block: make(chan struct{})}
	svc := newTestChatService(store, completer)
	seedConversation(t, store, "Busy chat")

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "first", SendOptions{Streaming: true})
		firstDone <- err
	}()

	// Wait for the first send to hold the guard.
	deadline := time.After(2 * time.Second)
	for {
		svc.mu.Lock()
		_, busy := svc.inFlight["conv-1"]
		svc.mu.Unlock()
		if busy {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first send never acquired the guard")
		case <-time.After(time.Millisecond):
		}
	}

	_, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "second", SendOptions{Streaming: true})
	if !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("expected ErrSendInFlight, got %v", err)
	}

	close(completer.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	// The guard clears once the first send finishes.
	if _, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "third", SendOptions{Streaming: true}); err != nil {
		t.Fatalf("third send failed: %v", err)
	}
}

func TestSendMessagePromptIncludesHistory(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{chunks: []string{"sure"}}
	svc := newTestChatService(store, completer)
	seedConversation(t, store, "History chat")

	if _, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "first question", SendOptions{Streaming: true}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "second question", SendOptions{Streaming: true}); err != nil {
		t.Fatalf("second send: %v", err)
	}

	if len(completer.prompts) != 2 {
		t.Fatalf("expected two prompts, got %d", len(completer.prompts))
	}

	second := completer.prompts[1]
	want := []CompletionMessage{
		{Role: models.RoleUser, Content: "first question"},
		{Role: models.RoleAssistant, Content: "sure"},
		{Role: models.RoleUser, Content: "second question"},
	}
	if len(second) != len(want) {
		t.Fatalf("expected %d prompt messages, got %d: %v", len(want), len(second), second)
	}
	for i := range want {
		if second[i] != want[i] {
			t.Fatalf("prompt message %d: expected %+v, got %+v", i, want[i], second[i])
		}
	}
}

func TestGetConversationIdempotent(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{chunks: []string{"reply"}}
	svc := newTestChatService(store, completer)
	seedConversation(t, store, models.DefaultConversationTitle)

	if _, err := svc.SendMessage(context.Background(), "owner-1", "conv-1", "hello", SendOptions{Streaming: true}); err != nil {
		t.Fatalf("send: %v", err)
	}

	first, err := svc.GetConversation(context.Background(), "owner-1", "conv-1")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	second, err := svc.GetConversation(context.Background(), "owner-1", "conv-1")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}

	if len(first.Messages) != 2 || len(second.Messages) != len(first.Messages) {
		t.Fatalf("expected identical message counts, got %d and %d", len(first.Messages), len(second.Messages))
	}
}

func TestDeleteConversation(t *testing.T) {
	store := newFakeStore()
	svc := newTestChatService(store, &fakeCompleter{})
	seedConversation(t, store, "Doomed chat")

	if err := svc.DeleteConversation(context.Background(), "owner-1", "conv-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteConversation(context.Background(), "owner-1", "conv-1"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"short", "short"},
		{strings.Repeat("x", 50), strings.Repeat("x", 50)},
		{strings.Repeat("x", 51), strings.Repeat("x", 50) + "…"},
		{"  padded  ", "padded"},
	}

	for i, tc := range cases {
		if got := deriveTitle(tc.input); got != tc.want {
			t.Fatalf("case %d: expected %q, got %q", i, tc.want, got)
		}
	}
}

func TestBuildPromptSkipsIncomplete(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "kept", Status: models.MessageStatusComplete},
		{Role: models.RoleAssistant, Content: "partial", Status: models.MessageStatusFailed},
		{Role: models.RoleAssistant, Content: "", Status: models.MessageStatusComplete},
	}

	prompt := buildPrompt(history, "new input")
	if len(prompt) != 2 {
		t.Fatalf("expected 2 prompt messages, got %d: %v", len(prompt), prompt)
	}
	if prompt[0].Content != "kept" || prompt[1].Content != "new input" {
		t.Fatalf("unexpected prompt: %v", prompt)
	}
}
