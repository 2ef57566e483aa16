// Package factory implements the record operations shared by the HTTP API and
// the CLI: list, create, deploy and delete.
package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/store"
	"github.com/PratikDhanave/empleaido-factory/internal/validate"
)

var (
	ErrNotFound  = errors.New("empleaido not found")
	ErrInvalidID = errors.New("invalid empleaido id")
	ErrPublish   = errors.New("publishing skill failed")
)

// Publisher renders a deployed record somewhere outside the store.
type Publisher interface {
	Publish(ctx context.Context, rec models.Empleaido) (string, error)
	Remove(ctx context.Context, rec models.Empleaido) error
}

// Service serializes every read-modify-write on the store within this process.
type Service struct {
	store  store.Store
	pub    Publisher
	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	mu sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides uuid generation, for tests.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) {
		if f != nil {
			s.newID = f
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Service over st and pub.
func New(st store.Store, pub Publisher, opts ...Option) *Service {
	s := &Service{
		store:  st,
		pub:    pub,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the whole collection.
func (s *Service) List(ctx context.Context) ([]models.Empleaido, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.LoadAll(ctx)
}

// Create validates req and appends a new active, undeployed record.
// Validation failures are *validate.Error and leave the store untouched.
func (s *Service) Create(ctx context.Context, req models.CreateEmpleaidoRequest) (models.Empleaido, error) {
	draft, err := validate.Draft(req)
	if err != nil {
		return models.Empleaido{}, err
	}

	rec := models.Empleaido{
		ID:                s.newID(),
		Name:              draft.Name,
		Role:              draft.Role,
		Specialty:         draft.Specialty,
		SefirotActivation: draft.SefirotActivation,
		Skills:            draft.Skills,
		Status:            models.StatusActive,
		CreatedAt:         s.now().UTC().Format(time.RFC3339),
		Deployed:          false,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return models.Empleaido{}, fmt.Errorf("load records: %w", err)
	}
	if err := s.store.ReplaceAll(ctx, append(all, rec)); err != nil {
		return models.Empleaido{}, fmt.Errorf("save records: %w", err)
	}
	s.logger.Info("empleaido created", "id", rec.ID, "name", rec.Name)
	return rec.Clone(), nil
}

// Deploy publishes the record and marks it deployed. It returns the updated
// record and the published artifact path. A publish failure wraps ErrPublish
// and leaves the record unchanged.
func (s *Service) Deploy(ctx context.Context, id string) (models.Empleaido, string, error) {
	if !validate.ValidID(id) {
		return models.Empleaido{}, "", ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return models.Empleaido{}, "", fmt.Errorf("load records: %w", err)
	}
	i := indexOf(all, id)
	if i < 0 {
		return models.Empleaido{}, "", ErrNotFound
	}

	path, err := s.pub.Publish(ctx, all[i])
	if err != nil {
		return models.Empleaido{}, "", fmt.Errorf("%w: %w", ErrPublish, err)
	}

	all[i].Deployed = true
	if err := s.store.ReplaceAll(ctx, all); err != nil {
		return models.Empleaido{}, "", fmt.Errorf("save records: %w", err)
	}
	s.logger.Info("empleaido deployed", "id", id, "path", path)
	return all[i].Clone(), path, nil
}

// Delete removes the record and then, once the shorter collection is saved,
// its published artifact when it was deployed. Failing to remove the artifact
// is logged and does not undo the deletion.
func (s *Service) Delete(ctx context.Context, id string) (models.Empleaido, error) {
	if !validate.ValidID(id) {
		return models.Empleaido{}, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.LoadAll(ctx)
	if err != nil {
		return models.Empleaido{}, fmt.Errorf("load records: %w", err)
	}
	i := indexOf(all, id)
	if i < 0 {
		return models.Empleaido{}, ErrNotFound
	}
	rec := all[i]

	rest := append(all[:i:i], all[i+1:]...)
	if err := s.store.ReplaceAll(ctx, rest); err != nil {
		return models.Empleaido{}, fmt.Errorf("save records: %w", err)
	}

	if rec.Deployed {
		if err := s.pub.Remove(ctx, rec); err != nil {
			s.logger.Warn("could not remove published skill", "id", id, "error", err)
		}
	}
	s.logger.Info("empleaido deleted", "id", id)
	return rec, nil
}

func indexOf(all []models.Empleaido, id string) int {
	for i := range all {
		if all[i].ID == id {
			return i
		}
	}
	return -1
}
