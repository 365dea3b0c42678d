package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

// GetOrCreateByJID maps a bare chat JID to an account, creating one lazily
// so bot users get quota and history without a registration flow. The
// synthesized email is local-only and cannot be logged into (empty hash).
func (s *Service) GetOrCreateByJID(ctx context.Context, jid string) (*User, error) {
	user, err := s.repo.GetByJID(ctx, jid)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	now := time.Now()
	id := uuid.New()
	user = &User{
		ID:        id,
		Email:     fmt.Sprintf("xmpp-%s@bot.invalid", id),
		XMPPJID:   &jid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// Lost a creation race: another message from the same JID got there first.
		if existing, gerr := s.repo.GetByJID(ctx, jid); gerr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return user, nil
}
