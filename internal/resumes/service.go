package resumes

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"resumegen-backend/internal/llm"
)

// Service contains business logic for resumes.
type Service struct {
	Repo Repo
	LLM  llm.Client
}

// Create validates and stores a new resume for a user.
func (s *Service) Create(ctx context.Context, userID, title string, content json.RawMessage) (Resume, error) {
	if userID == "" || title == "" {
		return Resume{}, ErrInvalidInput
	}
	if len(content) == 0 || !json.Valid(content) {
		return Resume{}, ErrInvalidInput
	}

	now := time.Now().UTC()
	resume := Resume{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		Content:    content,
		ExportTier: "free",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, resume); err != nil {
		return Resume{}, err
	}
	return resume, nil
}

// Get returns a live resume owned by the user. Ownership mismatches and
// tombstoned rows both come back as ErrNotFound so callers cannot probe
// other users' resumes.
func (s *Service) Get(ctx context.Context, userID, resumeID string) (Resume, error) {
	if userID == "" || resumeID == "" {
		return Resume{}, ErrInvalidInput
	}
	resume, err := s.Repo.GetByID(ctx, resumeID)
	if err != nil {
		return Resume{}, err
	}
	if resume.UserID != userID || resume.IsDeleted() {
		return Resume{}, ErrNotFound
	}
	return resume, nil
}

// List returns the user's live resumes, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Update rewrites title and content of a resume the user owns.
func (s *Service) Update(ctx context.Context, userID, resumeID, title string, content json.RawMessage) (Resume, error) {
	resume, err := s.Get(ctx, userID, resumeID)
	if err != nil {
		return Resume{}, err
	}
	if title != "" {
		resume.Title = title
	}
	if len(content) > 0 {
		if !json.Valid(content) {
			return Resume{}, ErrInvalidInput
		}
		resume.Content = content
	}
	resume.UpdatedAt = time.Now().UTC()
	if err := s.Repo.Update(ctx, resume); err != nil {
		return Resume{}, err
	}
	return resume, nil
}

// Delete tombstones a resume the user owns.
func (s *Service) Delete(ctx context.Context, userID, resumeID string) error {
	if _, err := s.Get(ctx, userID, resumeID); err != nil {
		return err
	}
	return s.Repo.SoftDelete(ctx, resumeID)
}

// GenerateAI runs content generation for a resume and stores the result.
func (s *Service) GenerateAI(ctx context.Context, userID, resumeID, targetRole, instructions string) (Resume, error) {
	if s.LLM == nil {
		return Resume{}, errors.New("missing dependencies")
	}
	resume, err := s.Get(ctx, userID, resumeID)
	if err != nil {
		return Resume{}, err
	}

	generated, err := s.LLM.GenerateContent(ctx, llm.GenerateInput{
		ResumeJSON:   string(resume.Content),
		Title:        resume.Title,
		TargetRole:   targetRole,
		Instructions: instructions,
	})
	if err != nil {
		return Resume{}, err
	}

	resume.AIContent = generated
	resume.UpdatedAt = time.Now().UTC()
	if err := s.Repo.Update(ctx, resume); err != nil {
		return Resume{}, err
	}
	return resume, nil
}
