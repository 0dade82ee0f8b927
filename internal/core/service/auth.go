package service

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var errBadCredentials = fmt.Errorf("%w: unknown user or wrong PIN", domain.ErrAuthFailure)

// AuthService checks PINs against the directory and links devices to the
// user that last logged in on them.
type AuthService struct {
	store   port.DocumentStore
	dir     *Directory
	limiter port.AttemptLimiter
}

func NewAuthService(store port.DocumentStore, limiter port.AttemptLimiter) *AuthService {
	if limiter == nil {
		limiter = openLimiter{}
	}
	return &AuthService{
		store:   store,
		dir:     NewDirectory(store),
		limiter: limiter,
	}
}

func (s *AuthService) Authenticate(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	key := "pin:" + creds.UserID.String()

	allowed, err := s.limiter.Allow(ctx, key)
	if err != nil {
		// limiter outages must not lock the family out
		log.Warn().Err(err).Msg("Login limiter unavailable")
		allowed = true
	}
	if !allowed {
		return domain.User{}, fmt.Errorf("%w: too many attempts, try again later", domain.ErrAuthFailure)
	}

	user, err := s.dir.GetUser(ctx, creds.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.recordFailure(ctx, key)
			return domain.User{}, errBadCredentials
		}
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PIN), []byte(creds.PIN)) != nil {
		s.recordFailure(ctx, key)
		log.Info().Str("user_id", user.ID.String()).Msg("Rejected PIN")
		return domain.User{}, errBadCredentials
	}
	if err := s.limiter.Reset(ctx, key); err != nil {
		log.Warn().Err(err).Msg("Login limiter reset failed")
	}

	if creds.DeviceID != "" {
		if err := s.linkDevice(ctx, user, creds.DeviceID); err != nil {
			log.Error().Err(err).Str("device_id", creds.DeviceID).Msg("Device link failed")
		}
	}
	log.Info().Str("user_id", user.ID.String()).Str("device_id", creds.DeviceID).Msg("User logged in")
	return user.Public(), nil
}

// UnlinkDevice records that the device's user logged out.
func (s *AuthService) UnlinkDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return nil
	}
	return s.store.Merge(ctx, domain.DevicePath(deviceID), map[string]any{
		"lastUnlinkedTimestamp": port.ServerTimestamp,
	})
}

func (s *AuthService) linkDevice(ctx context.Context, user domain.User, deviceID string) error {
	err := s.store.Merge(ctx, domain.DevicePath(deviceID), map[string]any{
		"lastKnownUserId":   user.ID.String(),
		"lastKnownUserName": user.Name,
		"linkedAt":          port.ServerTimestamp,
	})
	if err != nil {
		return err
	}
	return s.store.Update(ctx, domain.UserPath(user.ID), map[string]any{
		"deviceIds": port.ArrayUnion(deviceID),
	})
}

func (s *AuthService) recordFailure(ctx context.Context, key string) {
	if err := s.limiter.Failure(ctx, key); err != nil {
		log.Warn().Err(err).Msg("Login limiter update failed")
	}
}

// HashPIN validates and hashes a numeric PIN of 4 to 8 digits.
func HashPIN(pin string) (string, error) {
	if len(pin) < 4 || len(pin) > 8 {
		return "", fmt.Errorf("%w: PIN must have 4 to 8 digits", domain.ErrInvalid)
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return "", fmt.Errorf("%w: PIN must be numeric", domain.ErrInvalid)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type openLimiter struct{}

func (openLimiter) Allow(context.Context, string) (bool, error) { return true, nil }
func (openLimiter) Failure(context.Context, string) error       { return nil }
func (openLimiter) Reset(context.Context, string) error         { return nil }
