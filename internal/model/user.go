package model

import "time"

type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Email             string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	PasswordHash      string    `gorm:"size:255;not null" json:"-"`
	DisplayName       string    `gorm:"size:64;not null" json:"display_name"`
	Status            string    `gorm:"size:256;not null" json:"status"`
	AvatarData        []byte    `gorm:"type:mediumblob" json:"-"`
	AvatarContentType string    `gorm:"size:64" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasAvatar reports whether the user uploaded an avatar blob.
func (u *User) HasAvatar() bool {
	return len(u.AvatarData) > 0
}
