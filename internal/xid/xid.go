package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns prefix-<uuid v4>.
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
