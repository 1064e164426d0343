package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/repository"
	"github.com/loopfeed/loopfeed/internal/validation"
)

const userSearchLimit = 10

type UserService struct {
	userRepository    repository.UserRepository
	profileRepository repository.ProfileRepository
}

func NewUserService(
	userRepository repository.UserRepository,
	profileRepository repository.ProfileRepository,
) *UserService {
	return &UserService{
		userRepository:    userRepository,
		profileRepository: profileRepository,
	}
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepository.ByID(ctx, id)
}

func (s *UserService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profileRepository.ByUserID(ctx, userID)
}

func (s *UserService) ProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	return s.profileRepository.ByUsername(ctx, strings.ToLower(username))
}

// UpdateProfile changes the display name and bio of a user.
func (s *UserService) UpdateProfile(ctx context.Context, userID, displayName, bio string) (*model.Profile, error) {
	displayName = strings.TrimSpace(displayName)
	bio = strings.TrimSpace(bio)

	err := validation.ValidateDisplayName(displayName)
	if err != nil {
		return nil, validation.FieldError("display_name", err.Error())
	}
	if len([]rune(bio)) > 500 {
		return nil, validation.FieldError("bio", "bio is too long (max 500 characters)")
	}

	profile, err := s.profileRepository.ByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.DisplayName = displayName
	profile.Bio = bio
	err = s.profileRepository.Update(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return profile, nil
}

// Search finds collaborator candidates by username prefix. The searching user
// and the ids in exclude are left out.
func (s *UserService) Search(ctx context.Context, userID, query string, exclude []string) ([]*model.Profile, error) {
	query = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(query, "@")))
	if query == "" {
		return []*model.Profile{}, nil
	}

	profiles, err := s.profileRepository.SearchByUsername(ctx, query, append([]string{userID}, exclude...), userSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return profiles, nil
}

// ResolveCollaborators looks up profiles for the given user ids. Unknown ids are an error.
func (s *UserService) ResolveCollaborators(ctx context.Context, userIDs []string) ([]*model.Profile, error) {
	profiles := make([]*model.Profile, 0, len(userIDs))
	for _, id := range userIDs {
		p, err := s.profileRepository.ByUserID(ctx, id)
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, validation.FieldError("collaborators", "unknown user "+id)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
