package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/lsls-dev/school-portal-api/internal/models"
	appErrors "github.com/lsls-dev/school-portal-api/pkg/errors"
)

type parentRepository interface {
	List(ctx context.Context) ([]models.ParentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.ParentDetail, error)
	Children(ctx context.Context, parentID string) ([]models.ChildSummary, error)
}

// ParentService provides parent roster and dashboard use cases.
type ParentService struct {
	repo   parentRepository
	logger *zap.Logger
}

// NewParentService constructs a ParentService instance.
func NewParentService(repo parentRepository, logger *zap.Logger) *ParentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParentService{repo: repo, logger: logger}
}

// List returns all parent profiles.
func (s *ParentService) List(ctx context.Context) ([]models.ParentDetail, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parents")
	}
	return rows, nil
}

// Children returns the calling parent's children with their attendance
// rates.
func (s *ParentService) Children(ctx context.Context, claims *models.JWTClaims) ([]models.ChildSummary, error) {
	if claims == nil || claims.Role != models.RoleParent {
		return nil, appErrors.ErrUnauthorized
	}
	parent, err := s.repo.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent profile")
	}

	children, err := s.repo.Children(ctx, parent.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
	}
	return children, nil
}
