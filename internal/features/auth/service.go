package auth

import (
	"context"
	"errors"

	syncfeature "go-pos-sync/internal/features/sync"
	"go-pos-sync/internal/features/syncjob"
	"go-pos-sync/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type AuthService interface {
	Register(ctx context.Context, email, password, name, restaurantID string) (*User, error)
	Login(ctx context.Context, email, password string) (string, *User, error)
}

type AuthServiceImpl struct {
	UserRepo    UserRepository
	SyncService syncfeature.SyncService
	Logger      *zap.Logger
}

func NewAuthService(userRepo UserRepository, syncService syncfeature.SyncService, logger *zap.Logger) AuthService {
	return &AuthServiceImpl{
		UserRepo:    userRepo,
		SyncService: syncService,
		Logger:      logger,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, email, password, name, restaurantID string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		RestaurantID: restaurantID,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the password, issues a JWT, and kicks off a background sync
// so the tenant's dashboard is fresh by the time they look at it.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.UserRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(user.ID.Hex(), user.RestaurantID)
	if err != nil {
		return "", nil, err
	}

	s.triggerLoginSync(ctx, user)

	return token, user, nil
}

// triggerLoginSync is best effort: a login must never fail because the sync
// pipeline is busy or the tenant has no POS connection yet.
func (s *AuthServiceImpl) triggerLoginSync(ctx context.Context, user *User) {
	_, _, err := s.SyncService.EnqueueSync(ctx, user.RestaurantID, user.Email)
	if err == nil {
		return
	}

	var inProgress *syncjob.SyncAlreadyInProgressError
	if errors.As(err, &inProgress) || errors.Is(err, syncfeature.ErrNoCredentials) {
		return
	}

	s.Logger.Warn("login-triggered sync failed to enqueue",
		zap.String("restaurant_id", user.RestaurantID),
		zap.Error(err))
}
