// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

// Package chat implements the community chat channel: message persistence,
// history pagination, and fan-out of new messages to connected clients.
package chat

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Message length and history pagination limits.
const (
	MaxMessageLength = 1000 // runes, after trimming

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Author is the public identity attached to a message. It mirrors the
// sender's profile at read time, so display name edits show up on old
// messages too.
type Author struct {
	ID            string  `json:"id"`
	DisplayName   string  `json:"displayName"`
	ProfileColor  *string `json:"profileColor"`
	ProfileAvatar *string `json:"profileAvatar"`
}

// Message is one chat message. IDs are assigned by the database sequence,
// which also fixes the total order of the channel.
type Message struct {
	ID        int64     `json:"id"`
	UserID    ulid.ULID `json:"-"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Author    Author    `json:"user"`
}

// MessageRepository manages chat message persistence.
type MessageRepository interface {
	// Create inserts a message for the user and returns it with the
	// database-assigned id, timestamp, and the author's current profile.
	Create(ctx context.Context, userID ulid.ULID, content string) (*Message, error)

	// History returns up to limit messages with id < beforeID, newest
	// first. A beforeID of 0 means "from the newest message".
	History(ctx context.Context, beforeID int64, limit int) ([]*Message, error)
}
