// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package chat

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Notifier receives newly posted messages for fan-out to live connections.
// Delivery is best-effort; persistence has already happened by the time a
// message reaches the notifier.
type Notifier interface {
	NotifyMessage(message *Message)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message *Message)

// NotifyMessage calls f.
func (f NotifierFunc) NotifyMessage(message *Message) { f(message) }

// MetricsRecorder receives chat events for instrumentation. Implementations
// must be safe for concurrent use.
type MetricsRecorder interface {
	RecordMessagePosted()
}

// Service provides posting and history reads for the chat channel.
type Service struct {
	messages MessageRepository
	notifier Notifier
	logger   *slog.Logger
	metrics  MetricsRecorder
}

// NewService creates a chat Service. The notifier may be nil when no live
// fan-out is wired (e.g. in CLI contexts).
func NewService(messages MessageRepository, notifier Notifier, logger *slog.Logger) (*Service, error) {
	if messages == nil {
		return nil, oops.Errorf("messages repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{messages: messages, notifier: notifier, logger: logger}, nil
}

// SetMetrics attaches a metrics recorder. Must be called before the service
// handles requests; a nil recorder leaves instrumentation off.
func (s *Service) SetMetrics(metrics MetricsRecorder) {
	s.metrics = metrics
}

// Post validates, persists, and fans out a message from the given user.
// Content is trimmed; the stored and broadcast form is the trimmed one.
func (s *Service) Post(ctx context.Context, userID ulid.ULID, content string) (*Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, oops.Code("CHAT_VALIDATION").
			Errorf("message content cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return nil, oops.Code("CHAT_VALIDATION").
			With("max_length", MaxMessageLength).
			Errorf("message content exceeds %d characters", MaxMessageLength)
	}

	message, err := s.messages.Create(ctx, userID, trimmed)
	if err != nil {
		return nil, oops.Code("CHAT_POST_FAILED").
			With("operation", "create message").
			Wrap(err)
	}

	// The message is durable at this point. A slow or absent notifier must
	// not turn a successful post into an error.
	if s.notifier != nil {
		s.notifier.NotifyMessage(message)
	}
	if s.metrics != nil {
		s.metrics.RecordMessagePosted()
	}

	s.logger.Debug("chat message posted",
		"message_id", message.ID,
		"user_id", userID.String(),
	)

	return message, nil
}

// History returns messages older than beforeID in chronological order
// (oldest first). A beforeID of 0 starts from the newest message. The limit
// is clamped to [1, MaxHistoryLimit]; zero or negative means the default.
func (s *Service) History(ctx context.Context, beforeID int64, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if beforeID < 0 {
		beforeID = 0
	}

	messages, err := s.messages.History(ctx, beforeID, limit)
	if err != nil {
		return nil, oops.Code("CHAT_HISTORY_FAILED").
			With("operation", "load history").
			With("before_id", beforeID).
			Wrap(err)
	}

	// The repository returns newest-first for efficient keyset pagination;
	// clients render oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
