// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sorser/backend/internal/auth"
	"github.com/sorser/backend/internal/core"
)

// RegisterHook runs inside the registration transaction after the user row
// is written. An error rolls the registration back.
type RegisterHook func(ctx context.Context, tx core.DBTX, userID string) error

type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string, reason auth.RevokeReason) (int64, error)
}

type Service struct {
	repo       Repository
	tx         Transactor
	sessions   SessionRevoker
	onRegister []RegisterHook
	logger     *slog.Logger
}

func NewService(
	repo Repository,
	tx Transactor,
	sessions SessionRevoker,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		sessions: sessions,
		logger:   logger.With("component", "user_service"),
	}
}

// OnRegister adds a hook to the registration transaction. Call before
// serving traffic.
func (s *Service) OnRegister(h RegisterHook) {
	s.onRegister = append(s.onRegister, h)
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.UserInfo, error) {
	user := &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Name:         name,
	}

	err := s.tx.WithTx(ctx, func(repo Repository, tx core.DBTX) error {
		if err := repo.Create(ctx, user); err != nil {
			return err
		}
		for _, hook := range s.onRegister {
			if err := hook(ctx, tx, user.ID); err != nil {
				return fmt.Errorf("register hook: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// SetBlocked flips the blocked flag. Blocking also kills every refresh
// token and bumps the token version so live access tokens stop verifying.
func (s *Service) SetBlocked(
	ctx context.Context,
	actorID, targetID string,
	blocked bool,
) (*User, error) {
	if blocked && actorID == targetID {
		return nil, fmt.Errorf("block user: cannot block yourself: %w", core.ErrForbidden)
	}

	if err := s.repo.SetBlocked(ctx, targetID, blocked); err != nil {
		return nil, err
	}

	var ended int64
	if blocked {
		n, err := s.sessions.RevokeAllForUser(ctx, targetID, auth.ReasonAccountBlocked)
		if err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
		ended = n
		if err := s.repo.IncrementTokenVersion(ctx, targetID); err != nil {
			return nil, fmt.Errorf("increment token version: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "user block state changed",
		"user_id", targetID,
		"actor_id", actorID,
		"blocked", blocked,
		"sessions_revoked", ended,
	)

	return s.repo.GetByID(ctx, targetID)
}

func (s *Service) DeleteUser(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return fmt.Errorf("delete user: use the self-service endpoint: %w", core.ErrForbidden)
	}
	if err := s.repo.SoftDelete(ctx, targetID); err != nil {
		return err
	}
	n, err := s.sessions.RevokeAllForUser(ctx, targetID, auth.ReasonAccountDeleted)
	if err != nil {
		// The row is gone, so dangling sessions fail their user lookup.
		s.logger.WarnContext(ctx, "revoke sessions of deleted user", "user_id", targetID, "error", err)
		return nil
	}
	s.logger.InfoContext(ctx, "user deleted",
		"user_id", targetID,
		"actor_id", actorID,
		"sessions_revoked", n,
	)
	return nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, userID, req)
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}

	return s.repo.SoftDelete(ctx, userID)
}

func (s *Service) EmailExists(
	ctx context.Context,
	email string,
) (bool, error) {
	exists, err := s.repo.ExistsByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return false, err
	}
	return exists, nil
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		TokenVersion: u.TokenVersion,
		Blocked:      u.Blocked,
		CreatedAt:    u.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
