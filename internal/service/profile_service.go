package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ProfileService serves the caller's own account.
type ProfileService struct {
	users     repository.UserRepository
	analytics repository.AnalyticsRepository
}

// ProfileDependencies wires ProfileService.
type ProfileDependencies struct {
	UserRepo      repository.UserRepository
	AnalyticsRepo repository.AnalyticsRepository
}

// NewProfileService builds the service.
func NewProfileService(deps ProfileDependencies) *ProfileService {
	return &ProfileService{users: deps.UserRepo, analytics: deps.AnalyticsRepo}
}

// ProfileUpdate holds optional profile fields.
type ProfileUpdate struct {
	Name  *string
	Phone *string
}

// Get returns the caller's user record.
func (s *ProfileService) Get(ctx context.Context, identity auth.Identity) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("User", nil)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}

// Update changes name and/or phone. Email and role are not editable.
func (s *ProfileService) Update(ctx context.Context, identity auth.Identity, in ProfileUpdate) (*domain.User, error) {
	if in.Name == nil && in.Phone == nil {
		return nil, apperrors.NewValidationError("No fields to update", nil)
	}
	details := map[string]any{}
	if in.Name != nil && len([]rune(strings.TrimSpace(*in.Name))) < 2 {
		details["name"] = "Name must be at least 2 characters"
	}
	if in.Phone != nil && !validPhone(*in.Phone) {
		details["phone"] = "Phone must be 10 digits"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("Validation failed", details)
	}

	user, err := s.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// Activity summarizes the caller's tickets.
func (s *ProfileService) Activity(ctx context.Context, identity auth.Identity) (*domain.UserActivity, error) {
	activity, err := s.analytics.UserActivity(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("user activity: %w", err)
	}
	return activity, nil
}

func validPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if len(phone) != 10 {
		return false
	}
	for _, r := range phone {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
