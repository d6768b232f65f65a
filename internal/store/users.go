// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/fableboard/internal/logging"
	"github.com/tomtom215/fableboard/internal/metrics"
	"github.com/tomtom215/fableboard/internal/models"
)

// CreateUser inserts a user record. The email is normalized to lower case.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	start := time.Now()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt,
	)
	metrics.RecordDBQuery("insert", "users", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser returns the user with the given ID.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUserBy(ctx, "id", id)
}

// GetUserByEmail returns the user with the given email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) getUserBy(ctx context.Context, column, value string) (*models.User, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE `+column+` = ?`, value)

	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	metrics.RecordDBQuery("select", "users", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Entity: "user", ID: value}
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ensureUserByEmail returns the existing user for the email or creates a
// placeholder account. Placeholders carry a bcrypt hash of random bytes so
// no guessable credential can ever match; the hash is replaced when the
// invitee signs in through the credential service.
func (s *Store) ensureUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := randomPasswordHash()
	if err != nil {
		return nil, fmt.Errorf("generate placeholder credential: %w", err)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	user = &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         nameFromEmail(email),
		PasswordHash: hash,
		CreatedAt:    now(),
	}
	if err := s.CreateUser(ctx, user); err != nil {
		// A concurrent invite may have raced us; retry the lookup once.
		if existing, lookupErr := s.GetUserByEmail(ctx, email); lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}

	logging.Info().Str("user_id", user.ID).Msg("Created placeholder user for invitation")
	return user, nil
}

func randomPasswordHash() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(raw)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// nameFromEmail derives a display name from the local part of the email.
func nameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

// ignoreNoRows keeps sql.ErrNoRows out of the error-rate metrics; a miss
// is an expected outcome, not a query failure.
func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
