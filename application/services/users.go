package services

import (
	"context"

	"socialcore/application/dispatch"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

type UserService struct {
	users ports.UserRepository
	publisher
}

func NewUserService(users ports.UserRepository, d *dispatch.Dispatcher, clock ports.Clock, logger *zap.Logger) *UserService {
	return &UserService{users: users, publisher: newPublisher(d, clock, logger)}
}

// CreateUser registers a profile. A second registration of the same id is refused.
func (s *UserService) CreateUser(ctx context.Context, userID, username string, privacy entities.Privacy) (*entities.User, error) {
	user, err := entities.NewUser(userID, username, privacy, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User created", zap.String("userID", userID))
	publish(ctx, s.publisher, events.EntityUser, userID, nil, user)
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*entities.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	return user, nil
}

// SetPrivacy switches a profile between public and private. Going public accepts every
// pending follow request.
func (s *UserService) SetPrivacy(ctx context.Context, userID string, privacy entities.Privacy) (*entities.User, error) {
	if privacy != entities.PrivacyPublic && privacy != entities.PrivacyPrivate {
		return nil, pkgerrors.NewValidationError("privacy must be PUBLIC or PRIVATE")
	}
	old, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if old.Privacy == privacy {
		return old, nil
	}
	user, err := s.users.SetPrivacy(ctx, userID, privacy)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityUser, userID, old, user)
	return user, nil
}
