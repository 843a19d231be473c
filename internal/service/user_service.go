package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/repository"
)

// UserService registers the actors that own events and file requests.
type UserService struct {
	store repository.Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(store repository.Store, log zerolog.Logger) *UserService {
	return &UserService{store: store, now: time.Now, log: log}
}

// Register creates a user. Emails are unique regardless of case.
func (s *UserService) Register(ctx context.Context, in model.NewUser) (*model.User, error) {
	const op = "add user"
	u := &model.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		CreatedAt: s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.Errorf(model.ErrConditionsNotMet, op, "email %s is already in use", u.Email)
		}
		return nil, wrap(op, err)
	}
	s.log.Info().Str("user_id", u.ID).Msg("user registered")
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return requireUser(ctx, s.store, "get user", id)
}
