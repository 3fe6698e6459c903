package model

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// User is an account created on first successful login.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Picture   string    `json:"picture"`
	CreatedAt time.Time `json:"created_at"`
}

// AvatarURL returns the Gravatar URL for an email address.
func AvatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://secure.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?size=35"
}
