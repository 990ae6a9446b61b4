package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is one entry of the identity directory: the mapping from an external
// auth identity to the internal user key. Identity creation and credentials
// are owned by the auth subsystem; this engine only reads the directory.
type User struct {
	UserID    uuid.UUID `json:"userId"`
	AuthID    string    `json:"authId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

var ErrNotFound = errors.New("user not found")
