package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meetsync/internal/models"
	"meetsync/internal/store"
)

// SignIn records a verified identity. A placeholder created by an earlier
// invitation to the same email is promoted in place, so the user keeps
// every invitation. An email already owned by another identity is refused.
func (s *Service) SignIn(ctx context.Context, id models.Identity) (*models.User, error) {
	if strings.TrimSpace(id.Key) == "" {
		return nil, fmt.Errorf("%w: identity key is required", models.ErrValidation)
	}
	email, err := normalizeEmail(id.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = localPart(email)
	}

	var user *models.User
	err = s.store.RunAtomic(ctx, func(tx store.Store) error {
		existing, err := tx.GetUserByIdentityKey(ctx, id.Key)
		switch {
		case err == nil:
			existing.Email = email
			existing.Name = name
			existing.AvatarURL = id.AvatarURL
			if id.CalendarRef != "" {
				existing.CalendarRef = id.CalendarRef
			}
			user = existing
			return tx.UpdateUser(ctx, existing)
		case !errors.Is(err, models.ErrNotFound):
			return err
		}

		byEmail, err := tx.GetUserByEmail(ctx, email)
		switch {
		case err == nil && !byEmail.Placeholder:
			return fmt.Errorf("%w: %s is linked to another identity", models.ErrInvalidState, email)
		case err == nil:
			byEmail.IdentityKey = id.Key
			byEmail.Name = name
			byEmail.AvatarURL = id.AvatarURL
			byEmail.CalendarRef = id.CalendarRef
			byEmail.Placeholder = false
			user = byEmail
			s.logger.Info("Placeholder user claimed.", "user_id", byEmail.ID, "email", email)
			return tx.UpdateUser(ctx, byEmail)
		case !errors.Is(err, models.ErrNotFound):
			return err
		}

		user = &models.User{
			IdentityKey: id.Key,
			Email:       email,
			Name:        name,
			AvatarURL:   id.AvatarURL,
			CalendarRef: id.CalendarRef,
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s is linked to another identity", models.ErrInvalidState, email)
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return user, nil
}

// UserByEmail looks a user up by email address.
func (s *Service) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", normalized, err)
	}
	return user, nil
}
