package note

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrTitleContentRequired = errors.New("title and content are required")

// NoteRepository is the persistence surface the note service needs.
// Implemented by Repository.
type NoteRepository interface {
	Create(ctx context.Context, ownerID uuid.UUID, title, content string) (*Note, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Note, error)
	Update(ctx context.Context, ownerID, noteID uuid.UUID, title, content string) (*Note, error)
	Delete(ctx context.Context, ownerID, noteID uuid.UUID) error
}

// Service holds note business logic. Ownership scoping is enforced by
// the repository; the service validates input.
type Service struct {
	repo NoteRepository
}

func NewService(repo NoteRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, title, content string) (*Note, error) {
	if title == "" || content == "" {
		return nil, ErrTitleContentRequired
	}
	return s.repo.Create(ctx, ownerID, title, content)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*Note, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *Service) Update(ctx context.Context, ownerID, noteID uuid.UUID, title, content string) (*Note, error) {
	if title == "" || content == "" {
		return nil, ErrTitleContentRequired
	}
	return s.repo.Update(ctx, ownerID, noteID, title, content)
}

func (s *Service) Delete(ctx context.Context, ownerID, noteID uuid.UUID) error {
	return s.repo.Delete(ctx, ownerID, noteID)
}
