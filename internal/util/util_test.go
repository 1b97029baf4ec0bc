package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type tempErr bool

func (e tempErr) Error() string   { return "temp" }
func (e tempErr) Temporary() bool { return bool(e) }

func TestIsTempErr(t *testing.T) {
	assert.True(t, IsTempErr(tempErr(true)))
	assert.False(t, IsTempErr(tempErr(false)))
	assert.False(t, IsTempErr(errors.New("plain")))
}

func TestBlackHole(t *testing.T) {
	var bh BlackHole
	n, err := bh.Write([]byte("anything"))
	assert.NoError(t, err)
	assert.Equal(t, 8, n)

	buf := make([]byte, 16)
	_, err = bh.Read(buf)
	assert.Error(t, err)
	assert.NoError(t, bh.Close())
}
