package user

import (
	"context"
	"errors"

	"github.com/trezcool/darasa/core"
)

var ErrNotFound = errors.New("user not found")

type (
	// GetFilter fields are tried in order: ID, Username, Email.
	GetFilter struct {
		ID       string
		Username string
		Email    string
	}

	Repository interface {
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
	}

	ServiceInterface interface {
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
	}

	Service struct {
		db   core.DB
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository) *Service {
	return &Service{db: db, repo: repo}
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}
