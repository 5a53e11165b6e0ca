package repository

import (
	"context"
	"errors"
	"fmt"

	"socialcore/application/keys"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

type userItem struct {
	tableKeys
	entities.User
}

// UserRepository stores user profiles.
type UserRepository struct {
	store
}

func NewUserRepository(kv ports.KeyValueStore, logger *zap.Logger) *UserRepository {
	return &UserRepository{store{kv: kv, logger: logger}}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *entities.User) error {
	item := userItem{tableKeys: primary(keys.User(user.UserID), kindUser), User: *user}
	return r.create(ctx, item, func() error {
		return pkgerrors.NewAlreadyExistsError("user", user.UserID)
	})
}

func (r *UserRepository) GetUser(ctx context.Context, userID string) (*entities.User, error) {
	item, err := r.get(ctx, keys.User(userID))
	if err != nil {
		return nil, err
	}
	return decode[entities.User](item)
}

// GetUsers returns the users that exist, in no particular order.
func (r *UserRepository) GetUsers(ctx context.Context, userIDs []string) ([]*entities.User, error) {
	ks := make([]ports.Key, len(userIDs))
	for i, id := range userIDs {
		ks[i] = keys.User(id)
	}
	items, err := r.kv.BatchGet(ctx, ks)
	if err != nil {
		return nil, fmt.Errorf("failed to batch get users: %w", err)
	}
	return decodeAll[entities.User](items)
}

func (r *UserRepository) SetPrivacy(ctx context.Context, userID string, privacy entities.Privacy) (*entities.User, error) {
	item, err := r.kv.Update(ctx, keys.User(userID), ports.Update{
		Set: map[string]any{"Privacy": string(privacy)},
	}, ports.ItemExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set privacy: %w", err)
	}
	return decode[entities.User](item)
}
