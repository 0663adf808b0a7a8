package model

import "time"

// User stores Telegram user metadata. Every user that started the bot
// receives push reminders and the weekly digest.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	ChatID     int64
	FirstName  string
	LastName   string
	Username   string
	Muted      bool `gorm:"default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName is used when stamping createdBy / lastModifiedBy.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
