package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/authcore/internal/domain"
	pkgkafka "github.com/utafrali/authcore/pkg/kafka"
)

// Kafka topic constants for auth domain events.
const (
	TopicUserRegistered = "auth.user.registered"
	TopicUserUpdated    = "auth.user.updated"
	TopicTokenRotated   = "auth.token.rotated"
	TopicTokenRevoked   = "auth.token.revoked"
)

// Aggregate type constants.
const (
	AggregateTypeUser  = "user"
	AggregateTypeToken = "token"
)

// Source identifier for events originating from this service.
const SourceAuthService = "authcore"

// UserRegisteredData is the payload for an auth.user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserUpdatedData is the payload for an auth.user.updated event.
type UserUpdatedData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenRotatedData is the payload for an auth.token.rotated event. Token
// values are truncated prefixes; full credentials never enter the event bus.
type TokenRotatedData struct {
	UserID     string `json:"user_id"`
	OldToken   string `json:"old_token"`
	NewToken   string `json:"new_token"`
	OldRevoked bool   `json:"old_revoked"`
}

// TokenRevokedData is the payload for an auth.token.revoked event.
type TokenRevokedData struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes an auth.user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published auth.user.registered event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishUserUpdated publishes an auth.user.updated event.
func (p *Producer) PublishUserUpdated(ctx context.Context, user *domain.User) error {
	data := UserUpdatedData{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}

	event, err := pkgkafka.NewEvent(TopicUserUpdated, user.ID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserUpdated, event); err != nil {
		return fmt.Errorf("publish user.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published auth.user.updated event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishTokenRotated publishes an auth.token.rotated event.
func (p *Producer) PublishTokenRotated(ctx context.Context, userID, oldPrefix, newPrefix string, oldRevoked bool) error {
	data := TokenRotatedData{
		UserID:     userID,
		OldToken:   oldPrefix,
		NewToken:   newPrefix,
		OldRevoked: oldRevoked,
	}

	event, err := pkgkafka.NewEvent(TopicTokenRotated, userID, AggregateTypeToken, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create token.rotated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicTokenRotated, event); err != nil {
		return fmt.Errorf("publish token.rotated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published auth.token.rotated event",
		slog.String("user_id", userID),
	)

	return nil
}

// PublishTokenRevoked publishes an auth.token.revoked event.
func (p *Producer) PublishTokenRevoked(ctx context.Context, userID string, count int64) error {
	data := TokenRevokedData{
		UserID: userID,
		Count:  count,
	}

	event, err := pkgkafka.NewEvent(TopicTokenRevoked, userID, AggregateTypeToken, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create token.revoked event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicTokenRevoked, event); err != nil {
		return fmt.Errorf("publish token.revoked event: %w", err)
	}

	p.logger.DebugContext(ctx, "published auth.token.revoked event",
		slog.String("user_id", userID),
	)

	return nil
}
