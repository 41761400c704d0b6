package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New("evt")
	require.True(t, strings.HasPrefix(id, "evt-"))

	_, err := uuid.Parse(strings.TrimPrefix(id, "evt-"))
	assert.NoError(t, err)
	assert.NotEqual(t, id, New("evt"))
}
