// Package users persists the registry of everyone who talked to the
// bot, for statistics and broadcasts.
package users

import "time"

// Status tracks how far a user has progressed.
type Status string

const (
	StatusActive        Status = "active"
	StatusChannelJoined Status = "channel_joined"
	StatusIDVerified    Status = "id_verified"
)

// User is one row of the registry.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	FullName   string    `db:"fullname"`
	Status     Status    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
