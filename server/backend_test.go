package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ninefs/ninep/server"
)

func TestHasPermOwner(t *testing.T) {
	assert.True(t, server.HasPerm(0640, "glenda", "lab", "glenda", server.AREAD))
	assert.True(t, server.HasPerm(0640, "glenda", "lab", "glenda", server.AWRITE))
	assert.False(t, server.HasPerm(0640, "glenda", "lab", "glenda", server.AEXEC))
}

func TestHasPermGroup(t *testing.T) {
	assert.True(t, server.HasPerm(0640, "glenda", "lab", "lab", server.AREAD))
	assert.False(t, server.HasPerm(0640, "glenda", "lab", "outsider", server.AREAD))
}

func TestHasPermOther(t *testing.T) {
	assert.True(t, server.HasPerm(0644, "glenda", "lab", "stranger", server.AREAD))
	assert.False(t, server.HasPerm(0644, "glenda", "lab", "stranger", server.AWRITE))
}

func TestHasPermRequiresAllBits(t *testing.T) {
	assert.False(t, server.HasPerm(0400, "glenda", "lab", "glenda", server.AREAD|server.AWRITE))
}
