package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "go-directchat/internal/pkg/chat/application/domain"
	repository "go-directchat/internal/pkg/chat/persistence/repository/port"
)

type PgChatRepository struct {
	pool *pgxpool.Pool
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var errNilPool = errors.New("PgChatRepository: nil pool")

func (r *PgChatRepository) CreateOrGetConversation(ctx context.Context, pair [2]string) (chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, errNilPool
	}
	// pair comes from chat.NormalizePair, which orders by bytes; user_low and
	// user_high are COLLATE "C" so the CHECK agrees under any database locale.
	// The no-op update makes RETURNING yield the existing row on conflict.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO chat.conversation (user_low, user_high)
		VALUES ($1, $2)
		ON CONFLICT (user_low, user_high)
		DO UPDATE SET user_low = EXCLUDED.user_low
		RETURNING id::text, user_low, user_high, created_at, last_message_at
	`, pair[0], pair[1])
	return scanConversation(row)
}

func (r *PgChatRepository) GetConversation(ctx context.Context, conversationID string) (chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, errNilPool
	}
	if _, err := uuid.Parse(conversationID); err != nil {
		return chat.Conversation{}, chat.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, user_low, user_high, created_at, last_message_at
		FROM chat.conversation
		WHERE id = $1::uuid
	`, conversationID)
	return scanConversation(row)
}

func (r *PgChatRepository) ListConversationsByUser(ctx context.Context, userID string, limit int) ([]chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, user_low, user_high, created_at, last_message_at
		FROM chat.conversation
		WHERE user_low = $1 OR user_high = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []chat.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return convs, nil
}

func (r *PgChatRepository) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.conversation
		SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2)
		WHERE id = $1::uuid
	`, conversationID, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.StoredMessage) (chat.StoredMessage, error) {
	if r == nil || r.pool == nil {
		return chat.StoredMessage{}, errNilPool
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chat.message (conversation_id, sender_id, body)
		VALUES ($1::uuid, $2, $3)
		RETURNING id::text, created_at
	`, m.ConversationID, m.SenderID, m.Body).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return chat.StoredMessage{}, err
	}
	return m, nil
}

func (r *PgChatRepository) GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.StoredMessage, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, conversation_id::text, sender_id, body, created_at
		FROM chat.message
		WHERE conversation_id = $1::uuid
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.StoredMessage
	for rows.Next() {
		var msg chat.StoredMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func scanConversation(row pgx.Row) (chat.Conversation, error) {
	var c chat.Conversation
	err := row.Scan(&c.ID, &c.Participants[0], &c.Participants[1], &c.CreatedAt, &c.LastMessageAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Conversation{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, err
	}
	return c, nil
}
