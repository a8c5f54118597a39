package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"task-manager-api/internal/metadata"
	"task-manager-api/internal/store"
)

// Tokens issues and resolves personal access tokens. Every issued JWT has a
// row in personal_access_tokens; deleting the row revokes the token.
type Tokens struct {
	store  *store.Store
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(s *store.Store, secret string, ttl time.Duration) *Tokens {
	return &Tokens{store: s, secret: secret, ttl: ttl, now: time.Now}
}

// Create records a new token for a user and returns the signed JWT.
func (t *Tokens) Create(ctx context.Context, userID int64, name string) (string, error) {
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)
	tokenID := NewTokenID()

	_, err := store.Run(ctx, t.store.DB, t.store.Builder().Insert("personal_access_tokens").
		Columns("user_id", "token_id", "name", "expires_at", "created_at").
		Values(userID, tokenID, name, expiresAt, now))
	if err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return IssueToken(userID, tokenID, t.secret, now, expiresAt)
}

// Authenticate resolves a bearer token to its principal. Unknown, revoked
// and expired tokens fail with ErrInvalidToken.
func (t *Tokens) Authenticate(ctx context.Context, raw string) (*metadata.Principal, error) {
	claims, err := ParseToken(raw, t.secret)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	row, err := store.SelectOne(ctx, t.store.DB, t.store.Builder().
		Select("t.user_id", "t.expires_at", "u.admin", "u.email_verified_at").
		From("personal_access_tokens t").
		Join("users u ON u.id = t.user_id").
		Where(squirrel.Eq{"t.token_id": claims.ID}))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	if owner, _ := row["user_id"].(int64); owner != userID {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	now := t.now().UTC()
	if exp, ok := tokenTime(row["expires_at"]); ok && !exp.After(now) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	if _, err := store.Run(ctx, t.store.DB, t.store.Builder().Update("personal_access_tokens").
		Set("last_used_at", now).
		Where(squirrel.Eq{"token_id": claims.ID})); err != nil {
		return nil, fmt.Errorf("touch token: %w", err)
	}

	return &metadata.Principal{
		ID:            userID,
		Admin:         truthy(row["admin"]),
		EmailVerified: row["email_verified_at"] != nil,
		TokenID:       claims.ID,
	}, nil
}

// Revoke deletes the token row.
func (t *Tokens) Revoke(ctx context.Context, tokenID string) error {
	_, err := store.Run(ctx, t.store.DB, t.store.Builder().Delete("personal_access_tokens").
		Where(squirrel.Eq{"token_id": tokenID}))
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func tokenTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return store.ParseTimestamp(t)
	}
	return time.Time{}, false
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	}
	return false
}
