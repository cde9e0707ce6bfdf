package session

import "time"

// RefreshToken is a stored refresh token. Only the SHA-256 hash of the token is kept.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Token     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	UserID    string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

// TableName specifies the table name.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// IsExpired reports whether the token is past its expiry.
func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}
