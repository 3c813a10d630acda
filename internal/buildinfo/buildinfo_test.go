package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	v, c := Version, Commit
	t.Cleanup(func() { Version, Commit = v, c })

	Version, Commit = "dev", "unknown"
	assert.Equal(t, "dev", Short())

	Commit = "abc123"
	assert.Equal(t, "abc123", Short())

	Version = "v0.3.0"
	assert.Equal(t, "v0.3.0", Short())
	assert.Contains(t, String(), "ember v0.3.0 (commit abc123")
}
