// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

// Package postgres provides the PostgreSQL implementation of the chat
// message repository.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/prairiepost/prairiepost/internal/chat"
)

// poolIface is the subset of pgxpool.Pool the repository uses. Tests satisfy
// it with pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MessageRepository implements chat.MessageRepository using PostgreSQL.
type MessageRepository struct {
	pool poolIface
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(pool poolIface) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageColumns = `m.id, m.user_id, m.content, m.created_at,
	       u.display_name, u.profile_color, u.profile_avatar`

// Create inserts a message and returns it joined with the author's profile.
func (r *MessageRepository) Create(ctx context.Context, userID ulid.ULID, content string) (*chat.Message, error) {
	var (
		id        int64
		createdAt time.Time
	)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (user_id, content)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, userID.String(), content).Scan(&id, &createdAt)
	if err != nil {
		return nil, oops.Code("MESSAGE_CREATE_FAILED").
			With("operation", "insert chat message").
			With("user_id", userID.String()).
			Wrap(err)
	}

	row := r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = $1
	`, id)

	message, err := scanMessage(row)
	if err != nil {
		return nil, oops.Code("MESSAGE_CREATE_FAILED").
			With("operation", "read back chat message").
			With("message_id", id).
			Wrap(err)
	}
	return message, nil
}

// History returns up to limit messages with id < beforeID, newest first.
// A beforeID of 0 starts from the newest message.
func (r *MessageRepository) History(ctx context.Context, beforeID int64, limit int) ([]*chat.Message, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if beforeID == 0 {
		rows, err = r.pool.Query(ctx, `
			SELECT `+messageColumns+`
			FROM chat_messages m
			JOIN users u ON u.id = m.user_id
			ORDER BY m.id DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+messageColumns+`
			FROM chat_messages m
			JOIN users u ON u.id = m.user_id
			WHERE m.id < $1
			ORDER BY m.id DESC
			LIMIT $2
		`, beforeID, limit)
	}
	if err != nil {
		return nil, oops.Code("MESSAGE_HISTORY_FAILED").
			With("operation", "query chat history").
			With("before_id", beforeID).
			Wrap(err)
	}
	defer rows.Close()

	var messages []*chat.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, oops.Code("MESSAGE_SCAN_FAILED").
				With("operation", "scan chat message row").
				Wrap(err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("MESSAGE_ROWS_ERROR").
			With("operation", "iterate chat message rows").
			Wrap(err)
	}

	return messages, nil
}

// scanMessage scans a message row joined with its author profile.
func scanMessage(row pgx.Row) (*chat.Message, error) {
	var (
		id            int64
		userIDStr     string
		content       string
		createdAt     time.Time
		displayName   string
		profileColor  *string
		profileAvatar *string
	)

	err := row.Scan(&id, &userIDStr, &content, &createdAt, &displayName, &profileColor, &profileAvatar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("MESSAGE_SCAN_FAILED").
			With("operation", "scan chat message").
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("MESSAGE_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &chat.Message{
		ID:        id,
		UserID:    userID,
		Content:   content,
		CreatedAt: createdAt,
		Author: chat.Author{
			ID:            userIDStr,
			DisplayName:   displayName,
			ProfileColor:  profileColor,
			ProfileAvatar: profileAvatar,
		},
	}, nil
}

// Compile-time interface check.
var _ chat.MessageRepository = (*MessageRepository)(nil)
