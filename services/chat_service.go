package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/db/models"
)

const conversationTitleMaxRunes = 50

var (
	ErrNoConversation       = errors.New("chat: no conversation selected")
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrEmptyMessage         = errors.New("chat: message content cannot be empty")

	// ErrSendInFlight rejects a second send while one is still streaming
	// for the same conversation.
	ErrSendInFlight = errors.New("chat: a send is already in flight for this conversation")
)

// ConversationStore is the persistence surface of the chat pipeline.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	ListByProject(ctx context.Context, ownerID, projectID string) ([]models.Conversation, error)
	Get(ctx context.Context, ownerID, id string) (*models.Conversation, error)
	UpdateTitle(ctx context.Context, ownerID, id, title string) error
	Delete(ctx context.Context, ownerID, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	FinalizeMessage(ctx context.Context, id, content, status string, metadata json.RawMessage) error
	DeleteMessage(ctx context.Context, ownerID, id string) error
}

// Completer is the language-model capability consumed by the pipeline.
type Completer interface {
	Complete(ctx context.Context, messages []CompletionMessage, opts CompletionOptions) (*Completion, error)
	StreamComplete(ctx context.Context, messages []CompletionMessage, opts CompletionOptions, onChunk ChunkFunc) (*Completion, error)
}

// ChatService orchestrates conversations: persisting both sides of an
// exchange, deriving titles, and streaming assistant replies.
type ChatService struct {
	store     ConversationStore
	completer Completer
	logger    *zap.SugaredLogger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewChatService(store ConversationStore, completer Completer, logger *zap.SugaredLogger) *ChatService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ChatService{
		store:     store,
		completer: completer,
		logger:    logger,
		inFlight:  make(map[string]struct{}),
	}
}

// SendOptions tune one send. OnChunk, when set, receives streamed deltas
// as they arrive.
type SendOptions struct {
	Streaming   bool
	OnChunk     ChunkFunc
	Model       string
	Temperature float64
	MaxTokens   int
}

// SendResult reports both persisted sides of a completed exchange.
type SendResult struct {
	Conversation     models.Conversation `json:"conversation"`
	UserMessage      models.Message      `json:"userMessage"`
	AssistantMessage models.Message      `json:"assistantMessage"`
}

// ConversationWithMessages is a conversation plus its full ordered history.
type ConversationWithMessages struct {
	models.Conversation
	Messages []models.Message `json:"messages"`
}

func (s *ChatService) ListConversations(ctx context.Context, ownerID, projectID string) ([]models.Conversation, error) {
	conversations, err := s.store.ListByProject(ctx, ownerID, projectID)
	if err != nil {
		s.logger.Errorw("list conversations failed", "project_id", projectID, "error", err)
		return nil, err
	}
	return conversations, nil
}

func (s *ChatService) CreateConversation(ctx context.Context, ownerID, projectID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = models.DefaultConversationTitle
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, conv); err != nil {
		s.logger.Errorw("create conversation failed", "project_id", projectID, "error", err)
		return nil, err
	}
	return conv, nil
}

func (s *ChatService) GetConversation(ctx context.Context, ownerID, id string) (*ConversationWithMessages, error) {
	conv, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		s.logger.Errorw("get conversation failed", "conversation_id", id, "error", err)
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, id)
	if err != nil {
		s.logger.Errorw("list messages failed", "conversation_id", id, "error", err)
		return nil, err
	}

	return &ConversationWithMessages{Conversation: *conv, Messages: messages}, nil
}

func (s *ChatService) UpdateConversationTitle(ctx context.Context, ownerID, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("chat: title cannot be empty")
	}

	if err := s.store.UpdateTitle(ctx, ownerID, id, title); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrConversationNotFound
		}
		s.logger.Errorw("update conversation title failed", "conversation_id", id, "error", err)
		return err
	}
	return nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, ownerID, id string) error {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrConversationNotFound
		}
		s.logger.Errorw("delete conversation failed", "conversation_id", id, "error", err)
		return err
	}
	return nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, ownerID, id string) error {
	if err := s.store.DeleteMessage(ctx, ownerID, id); err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Errorw("delete message failed", "message_id", id, "error", err)
		}
		return err
	}
	return nil
}

// SendMessage persists the user's message, derives the conversation title
// from the first user message, and produces exactly one persisted assistant
// message whether streaming or not. The ordering guarantee inside one call:
// user message insert precedes streaming start, which precedes the single
// in-place finalization of the placeholder.
func (s *ChatService) SendMessage(ctx context.Context, ownerID, conversationID, content string, opts SendOptions) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if conversationID == "" {
		return nil, ErrNoConversation
	}

	if !s.acquire(conversationID) {
		return nil, ErrSendInFlight
	}
	defer s.release(conversationID)

	conv, err := s.store.Get(ctx, ownerID, conversationID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		s.logger.Errorw("load conversation failed", "conversation_id", conversationID, "error", err)
		return nil, err
	}

	history, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		s.logger.Errorw("load history failed", "conversation_id", conversationID, "error", err)
		return nil, err
	}

	now := time.Now().UTC()
	userMsg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        content,
		Status:         models.MessageStatusComplete,
		CreatedAt:      now,
	}
	if err := s.store.InsertMessage(ctx, &userMsg); err != nil {
		s.logger.Errorw("persist user message failed", "conversation_id", conversationID, "error", err)
		return nil, err
	}

	// Title derivation happens deterministically right after the first
	// user message lands, not via a change subscription.
	if conv.Title == models.DefaultConversationTitle && !hasUserMessage(history) {
		title := deriveTitle(content)
		if err := s.store.UpdateTitle(ctx, ownerID, conversationID, title); err != nil {
			s.logger.Warnw("auto-title failed", "conversation_id", conversationID, "error", err)
		} else {
			conv.Title = title
		}
	}

	prompt := buildPrompt(history, content)

	completionOpts := CompletionOptions{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var assistantMsg models.Message
	if opts.Streaming {
		assistantMsg, err = s.streamReply(ctx, conversationID, prompt, completionOpts, opts.OnChunk)
	} else {
		assistantMsg, err = s.completeReply(ctx, conversationID, prompt, completionOpts)
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.Touch(ctx, conversationID, time.Now().UTC()); err != nil {
		s.logger.Warnw("touch conversation failed", "conversation_id", conversationID, "error", err)
	}

	return &SendResult{
		Conversation:     *conv,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

// streamReply persists an empty assistant placeholder, streams into it, and
// finalizes it in place. On a mid-stream failure the placeholder keeps the
// partial content and is marked failed rather than deleted.
func (s *ChatService) streamReply(ctx context.Context, conversationID string, prompt []CompletionMessage, opts CompletionOptions, onChunk ChunkFunc) (models.Message, error) {
	placeholder := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        "",
		Status:         models.MessageStatusStreaming,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, &placeholder); err != nil {
		s.logger.Errorw("persist placeholder failed", "conversation_id", conversationID, "error", err)
		return models.Message{}, err
	}

	var partial strings.Builder
	accumulate := func(chunk string) error {
		partial.WriteString(chunk)
		if onChunk != nil {
			return onChunk(chunk)
		}
		return nil
	}

	completion, err := s.completer.StreamComplete(ctx, prompt, opts, accumulate)
	if err != nil {
		s.logger.Errorw("streaming completion failed", "conversation_id", conversationID, "error", err)

		metadata, _ := json.Marshal(map[string]any{"streamed": true, "error": err.Error()})
		if finalizeErr := s.store.FinalizeMessage(context.WithoutCancel(ctx), placeholder.ID, partial.String(), models.MessageStatusFailed, metadata); finalizeErr != nil {
			s.logger.Errorw("mark placeholder failed", "message_id", placeholder.ID, "error", finalizeErr)
		}
		return models.Message{}, err
	}

	metadata, _ := json.Marshal(map[string]any{
		"streamed": true,
		"model":    completion.Model,
		"usage":    completion.Usage,
	})
	if err := s.store.FinalizeMessage(ctx, placeholder.ID, completion.Content, models.MessageStatusComplete, metadata); err != nil {
		s.logger.Errorw("finalize placeholder failed", "message_id", placeholder.ID, "error", err)
		return models.Message{}, err
	}

	placeholder.Content = completion.Content
	placeholder.Status = models.MessageStatusComplete
	placeholder.Metadata = metadata
	return placeholder, nil
}

func (s *ChatService) completeReply(ctx context.Context, conversationID string, prompt []CompletionMessage, opts CompletionOptions) (models.Message, error) {
	completion, err := s.completer.Complete(ctx, prompt, opts)
	if err != nil {
		s.logger.Errorw("completion failed", "conversation_id", conversationID, "error", err)
		return models.Message{}, err
	}

	metadata, _ := json.Marshal(map[string]any{
		"streamed": false,
		"model":    completion.Model,
		"usage":    completion.Usage,
	})

	assistantMsg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        completion.Content,
		Status:         models.MessageStatusComplete,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, &assistantMsg); err != nil {
		s.logger.Errorw("persist assistant message failed", "conversation_id", conversationID, "error", err)
		return models.Message{}, err
	}
	return assistantMsg, nil
}

func (s *ChatService) acquire(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[conversationID]; busy {
		return false
	}
	s.inFlight[conversationID] = struct{}{}
	return true
}

func (s *ChatService) release(conversationID string) {
	s.mu.Lock()
	delete(s.inFlight, conversationID)
	s.mu.Unlock()
}

func hasUserMessage(messages []models.Message) bool {
	for _, msg := range messages {
		if msg.Role == models.RoleUser {
			return true
		}
	}
	return false
}

// buildPrompt turns persisted history plus the new user input into the
// role-tagged message list for the completion API. Failed placeholders and
// empty messages are left out.
func buildPrompt(history []models.Message, userInput string) []CompletionMessage {
	prompt := make([]CompletionMessage, 0, len(history)+1)
	for _, msg := range history {
		if msg.Status != models.MessageStatusComplete {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		prompt = append(prompt, CompletionMessage{Role: msg.Role, Content: content})
	}
	prompt = append(prompt, CompletionMessage{Role: models.RoleUser, Content: userInput})
	return prompt
}

// deriveTitle truncates the first user message to 50 runes, appending an
// ellipsis when cut short.
func deriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= conversationTitleMaxRunes {
		return content
	}

	var builder strings.Builder
	count := 0
	for _, r := range content {
		if count >= conversationTitleMaxRunes {
			break
		}
		builder.WriteRune(r)
		count++
	}
	return strings.TrimSpace(builder.String()) + "…"
}
