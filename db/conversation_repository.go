package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelogroup/searchmatic/db/models"
)

// ConversationRepository owns the conversations and messages tables.
// Messages cascade-delete with their conversation.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	const query = `
		INSERT INTO conversations (id, project_id, owner_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		conv.ID,
		conv.ProjectID,
		conv.OwnerID,
		conv.Title,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", mapRowError(err))
	}
	return nil
}

func (r *ConversationRepository) ListByProject(ctx context.Context, ownerID, projectID string) ([]models.Conversation, error) {
	const query = `
		SELECT id, project_id, owner_id, title, created_at, updated_at
		FROM conversations
		WHERE project_id = $1 AND owner_id = $2
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list conversations: %w", rows.Err())
	}
	return conversations, nil
}

func (r *ConversationRepository) Get(ctx context.Context, ownerID, id string) (*models.Conversation, error) {
	const query = `
		SELECT id, project_id, owner_id, title, created_at, updated_at
		FROM conversations WHERE id = $1 AND owner_id = $2`

	var c models.Conversation
	err := r.pool.QueryRow(ctx, query, id, ownerID).Scan(
		&c.ID, &c.ProjectID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", mapRowError(err))
	}
	return &c, nil
}

func (r *ConversationRepository) UpdateTitle(ctx context.Context, ownerID, id, title string) error {
	const query = `
		UPDATE conversations SET title = $3, updated_at = $4
		WHERE id = $1 AND owner_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, ownerID, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, ownerID, id string) error {
	const query = `DELETE FROM conversations WHERE id = $1 AND owner_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE conversations SET updated_at = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) InsertMessage(ctx context.Context, msg *models.Message) error {
	const query = `
		INSERT INTO messages (id, conversation_id, role, content, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	metadata := msg.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.Status,
		metadata,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", mapRowError(err))
	}
	return nil
}

func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	const query = `
		SELECT id, conversation_id, role, content, status, metadata, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Status, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list messages: %w", rows.Err())
	}
	return messages, nil
}

// FinalizeMessage rewrites a placeholder's content, status and metadata in
// place. A streamed reply is never deleted and re-inserted.
func (r *ConversationRepository) FinalizeMessage(ctx context.Context, id, content, status string, metadata json.RawMessage) error {
	const query = `
		UPDATE messages SET content = $2, status = $3, metadata = $4
		WHERE id = $1`

	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	tag, err := r.pool.Exec(ctx, query, id, content, status, metadata)
	if err != nil {
		return fmt.Errorf("finalize message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes a single message; ownership is checked through the
// parent conversation.
func (r *ConversationRepository) DeleteMessage(ctx context.Context, ownerID, id string) error {
	const query = `
		DELETE FROM messages m
		USING conversations c
		WHERE m.id = $1 AND m.conversation_id = c.id AND c.owner_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
