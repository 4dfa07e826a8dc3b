package xid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed, time-ordered unique id such as "bat-0190b1c2-...".
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// Suffix returns the last n hex characters of an id, uppercased.
func Suffix(id string, n int) string {
	clean := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if n <= 0 || n >= len(clean) {
		return clean
	}
	return clean[len(clean)-n:]
}
