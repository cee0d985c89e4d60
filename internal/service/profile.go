package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/omar-mostafa205/Planna/internal/domain"
)

// ProfileServiceImpl implements domain.ProfileService
type ProfileServiceImpl struct {
	repository domain.ProfileRepository
}

// NewProfileService creates a new profile service
func NewProfileService(repository domain.ProfileRepository) *ProfileServiceImpl {
	return &ProfileServiceImpl{repository: repository}
}

// SyncProfile records first contact from the identity provider.
// Existing profiles only get their email refreshed; plans and billing flags are untouched.
func (s *ProfileServiceImpl) SyncProfile(ctx context.Context, userID string, email string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	profile, err := s.repository.UpsertProfile(ctx, userID, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	return profile, nil
}
