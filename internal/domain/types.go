package domain

import (
	"fmt"
	"strings"
	"time"
)

type ChatID string
type MessageID string

// Role is the author of a message. It is a closed set.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps free-form text to a Role. It is case-insensitive and
// accepts "model" as an alias of assistant, which is how Gemini names it.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "assistant", "model":
		return RoleAssistant, nil
	case "system":
		return RoleSystem, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

type Timestamp = time.Time
