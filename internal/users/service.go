package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/marquee-ott/marquee/internal/clock"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	GetProfile(ctx context.Context, id int64) (Profile, error)
	SaveProfile(ctx context.Context, p Profile) error
	CountUsers(ctx context.Context) (int, error)
}

// MediaPurger schedules deletion of stored objects.
type MediaPurger interface {
	PurgeMedia(ctx context.Context, reason string, keys ...string) error
}

// Service handles profile business logic.
type Service struct {
	repo     RepositoryPort
	purger   MediaPurger
	clock    clock.Clock
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, purger MediaPurger, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, purger: purger, clock: clk, logger: logger, validate: validator.New()}
}

// Profile returns the user's profile.
func (s *Service) Profile(ctx context.Context, userID int64) (Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// CountUsers returns the number of accounts.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	return s.repo.CountUsers(ctx)
}

// UpdateProfile applies in and, when picKey is set, swaps the profile picture.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput, picKey string) (Profile, error) {
	if err := s.validate.Struct(in); err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.Hobbies != nil {
		p.Hobbies = *in.Hobbies
	}
	if in.Bio != nil {
		p.Bio = *in.Bio
	}
	previous := p.ProfilePicKey
	if picKey != "" {
		p.ProfilePicKey = picKey
	}
	p.UpdatedAt = s.clock.Now()
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		return Profile{}, err
	}
	if picKey != "" && previous != "" {
		s.purge(ctx, "profile.replace", previous)
	}
	return p, nil
}

// DeletePicture clears the profile picture and purges the stored object.
func (s *Service) DeletePicture(ctx context.Context, userID int64) (Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if p.ProfilePicKey == "" {
		return p, nil
	}
	previous := p.ProfilePicKey
	p.ProfilePicKey = ""
	p.UpdatedAt = s.clock.Now()
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		return Profile{}, err
	}
	s.purge(ctx, "profile.delete_pic", previous)
	return p, nil
}

// DiscardUpload purges a picture stored for an update that did not complete.
func (s *Service) DiscardUpload(ctx context.Context, key string) {
	if key != "" {
		s.purge(ctx, "upload.discard", key)
	}
}

func (s *Service) purge(ctx context.Context, reason string, keys ...string) {
	if s.purger == nil {
		return
	}
	if err := s.purger.PurgeMedia(ctx, reason, keys...); err != nil {
		s.logger.Error("enqueue media purge failed", slog.String("reason", reason), slog.Any("error", err))
	}
}
