package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeovahfialho/trading-backend/internal/domain"
	"github.com/jeovahfialho/trading-backend/pkg/logger"
	"go.uber.org/zap"
)

type UserService struct {
	users domain.UserRegistry
}

func NewUserService(users domain.UserRegistry) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Register(ctx context.Context, username string) (domain.User, error) {
	user, err := s.users.Create(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidUsername) || errors.Is(err, domain.ErrUsernameTaken) {
			return domain.User{}, err
		}
		return domain.User{}, domain.NewPersistenceError("create user", err)
	}

	logger.WithContext(ctx).Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username))
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	user, ok, err := s.users.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, domain.NewPersistenceError("find user", err)
	}
	if !ok {
		return domain.User{}, fmt.Errorf("%w: %d", domain.ErrUserNotFound, id)
	}
	return user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	user, ok, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return domain.User{}, domain.NewPersistenceError("find user", err)
	}
	if !ok {
		return domain.User{}, fmt.Errorf("%w: %q", domain.ErrUserNotFound, username)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("list users", err)
	}
	return users, nil
}

// Delete removes the account. Its trades stay in the ledger and show up in
// the feed under UnknownUsername.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	removed, err := s.users.Delete(ctx, id)
	if err != nil {
		return domain.NewPersistenceError("delete user", err)
	}
	if !removed {
		return fmt.Errorf("%w: %d", domain.ErrUserNotFound, id)
	}

	logger.WithContext(ctx).Info("user deleted", zap.Int64("user_id", id))
	return nil
}
