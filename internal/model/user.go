package model

import (
	"fmt"
	"strings"
)

// User is a known chat user that can create or receive tasks.
type User struct {
	ID       int64
	FullName string
	Username string
}

// DisplayName returns the best human readable name for the user.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}

	return fmt.Sprintf("user %d", u.ID)
}
