package canteen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mealpoint/mealpoint/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, c Canteen) (Canteen, error)
	Get(ctx context.Context, id int64) (Canteen, error)
	List(ctx context.Context) ([]Canteen, error)
	ListLocked(ctx context.Context) ([]Canteen, error)
	UnlockExpired(ctx context.Context, cutoff, now time.Time) (int64, error)
}

// Service owns the canteen registry and the lock workflow.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateInput holds the fields for a new canteen.
type CreateInput struct {
	Name     string
	Location string
}

// Create registers a new canteen.
func (s *Service) Create(ctx context.Context, input CreateInput) (Canteen, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Canteen{}, fmt.Errorf("canteen: name required: %w", shared.ErrInvalidInput)
	}
	now := s.now()
	return s.repo.Create(ctx, Canteen{
		Name:      name,
		Location:  strings.TrimSpace(input.Location),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Get fetches one canteen.
func (s *Service) Get(ctx context.Context, id int64) (Canteen, error) {
	return s.repo.Get(ctx, id)
}

// List returns all canteens.
func (s *Service) List(ctx context.Context) ([]Canteen, error) {
	return s.repo.List(ctx)
}

// ListLocked returns the currently locked canteens.
func (s *Service) ListLocked(ctx context.Context) ([]Canteen, error) {
	return s.repo.ListLocked(ctx)
}

// Lock places a manual lock. Fails if the canteen is already locked.
func (s *Service) Lock(ctx context.Context, id int64, lockedBy, reason string) (Canteen, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Canteen{}, fmt.Errorf("canteen: lock reason required: %w", shared.ErrInvalidInput)
	}
	var out Canteen
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.IsLocked {
			return fmt.Errorf("canteen %d: %w", id, shared.ErrAlreadyLocked)
		}
		out, err = s.applyLock(ctx, tx, c, lockedBy, reason)
		return err
	})
	return out, err
}

// VerificationLock locks a canteen as part of sale verification. Unlike Lock
// it tolerates an existing lock and appends to its reason, so repeated
// verification updates keep the full trail.
func (s *Service) VerificationLock(ctx context.Context, id int64, lockedBy, reason string) (Canteen, error) {
	var out Canteen
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.IsLocked && c.LockReason != "" {
			if strings.Contains(c.LockReason, reason) {
				reason = c.LockReason
			} else {
				reason = c.LockReason + " | " + reason
			}
		}
		out, err = s.applyLock(ctx, tx, c, lockedBy, reason)
		return err
	})
	return out, err
}

func (s *Service) applyLock(ctx context.Context, tx TxRepository, c Canteen, lockedBy, reason string) (Canteen, error) {
	now := s.now()
	c.IsLocked = true
	c.LockedAt = &now
	c.LockedBy = lockedBy
	c.LockReason = reason
	c.UpdatedAt = now
	return tx.Save(ctx, c)
}

// Unlock removes the lock. Fails if the canteen is not locked.
func (s *Service) Unlock(ctx context.Context, id int64) (Canteen, error) {
	var out Canteen
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !c.IsLocked {
			return fmt.Errorf("canteen %d: %w", id, shared.ErrNotLocked)
		}
		c.IsLocked = false
		c.LockedAt = nil
		c.LockedBy = ""
		c.LockReason = ""
		c.UpdatedAt = s.now()
		out, err = tx.Save(ctx, c)
		return err
	})
	return out, err
}

// AutoUnlock clears every lock placed before the start of the current
// calendar day. Locks placed today survive. Idempotent; returns the number of
// canteens unlocked.
func (s *Service) AutoUnlock(ctx context.Context) (int64, error) {
	now := s.now()
	return s.repo.UnlockExpired(ctx, shared.StartOfDay(now), now)
}

// IsLocked reports the lock state of one canteen.
func (s *Service) IsLocked(ctx context.Context, id int64) (bool, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return c.IsLocked, nil
}

// Exists reports whether the canteen id is registered.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
