package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/AuthGo/pkg/kafka"
	"github.com/utafrali/AuthGo/internal/domain"
)

// Kafka topic constants for account lifecycle events.
const (
	TopicUserRegistered      = "authgo.user.registered"
	TopicUserPasswordChanged = "authgo.user.password_changed"
	TopicUserDeactivated     = "authgo.user.deactivated"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceAuthService = "auth-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// UserPasswordChangedData is the payload for a user.password_changed event.
// It deliberately carries no credential material.
type UserPasswordChangedData struct {
	UserID string `json:"user_id"`
}

// UserDeactivatedData is the payload for a user.deactivated event.
type UserDeactivatedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Producer publishes account lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return nil
}

// PublishUserPasswordChanged publishes a user.password_changed event.
func (p *Producer) PublishUserPasswordChanged(ctx context.Context, userID string) error {
	data := UserPasswordChangedData{UserID: userID}

	event, err := pkgkafka.NewEvent(TopicUserPasswordChanged, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.password_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserPasswordChanged, event); err != nil {
		return fmt.Errorf("publish user.password_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.password_changed event",
		slog.String("user_id", userID),
	)

	return nil
}

// PublishUserDeactivated publishes a user.deactivated event.
func (p *Producer) PublishUserDeactivated(ctx context.Context, user *domain.User) error {
	data := UserDeactivatedData{
		UserID: user.ID,
		Email:  user.Email,
	}

	event, err := pkgkafka.NewEvent(TopicUserDeactivated, user.ID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.deactivated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserDeactivated, event); err != nil {
		return fmt.Errorf("publish user.deactivated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.deactivated event",
		slog.String("user_id", user.ID),
	)

	return nil
}
