package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OpenPostgres connects to the auth database and migrates the refresh token table.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect auth database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables this package owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&RefreshToken{}); err != nil {
		return fmt.Errorf("migrate refresh tokens: %w", err)
	}
	return nil
}

// HashToken returns the stored form of a plain refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenRepository handles refresh token rows.
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a repository on db.
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a hashed refresh token for userID.
func (r *TokenRepository) Create(ctx context.Context, token, userID string, expiresAt time.Time) (*RefreshToken, error) {
	rt := &RefreshToken{Token: HashToken(token), UserID: userID, ExpiresAt: expiresAt}
	if err := r.db.WithContext(ctx).Create(rt).Error; err != nil {
		return nil, err
	}
	return rt, nil
}

// DeleteByToken revokes one refresh token and reports how many rows were removed.
func (r *TokenRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	res := r.db.WithContext(ctx).Where("token = ?", HashToken(token)).Delete(&RefreshToken{})
	return res.RowsAffected, res.Error
}

// DeleteByUserID revokes every refresh token of a user.
func (r *TokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&RefreshToken{})
	return res.RowsAffected, res.Error
}

// DeleteExpired removes expired tokens.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&RefreshToken{})
	return res.RowsAffected, res.Error
}
