package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"receipto/internal/dto"
	"receipto/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// UserStore is the persistence surface for user accounts.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CategoryPurger and ReceiptPurger remove everything a user owns in the
// respective collection.
type CategoryPurger interface {
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type ReceiptPurger interface {
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type UserService struct {
	userRepo     UserStore
	categoryRepo CategoryPurger
	receiptRepo  ReceiptPurger
	logger       *zap.Logger
}

func NewUserService(
	userRepo UserStore,
	categoryRepo CategoryPurger,
	receiptRepo ReceiptPurger,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:     userRepo,
		categoryRepo: categoryRepo,
		receiptRepo:  receiptRepo,
		logger:       logger,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return userResponse(user), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *dto.UpdateUserRequest) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Username); name != "" {
		user.Username = name
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		user.Email = email
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	return userResponse(user), nil
}

// DeleteAccount removes the user and everything they own. Receipts go
// before categories because each receipt references its category; the
// user goes last so a failure never leaves records pointing at a missing
// user.
func (s *UserService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.getUser(ctx, userID); err != nil {
		return err
	}

	if err := s.receiptRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("delete receipts: %w", err)
	}
	if err := s.categoryRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("delete categories: %w", err)
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("user account deleted", zap.String("user_id", userID.String()))
	return nil
}

func (s *UserService) getUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func userResponse(user *models.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:       user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
	}
}
