package auth

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFuncAccepts(t *testing.T) {
	be := TokenFunc(func(token []byte) (string, error) {
		if string(token) == "sesame" {
			return "glenda", nil
		}
		return "", errors.New("bad token")
	})

	ch, err := be.NewChannel("glenda", "")
	require.NoError(t, err)

	_, err = ch.Write([]byte("sesame"))
	require.NoError(t, err)

	_, ok := ch.Done()
	assert.False(t, ok, "Done must not settle before the trailing read")

	_, err = ch.Read(make([]byte, 1))
	assert.Equal(t, io.EOF, err)

	uname, ok := ch.Done()
	assert.True(t, ok)
	assert.Equal(t, "glenda", uname)
}

func TestTokenFuncRejects(t *testing.T) {
	be := TokenFunc(func(token []byte) (string, error) {
		return "", errors.New("bad token")
	})

	ch, err := be.NewChannel("glenda", "")
	require.NoError(t, err)
	ch.Write([]byte("wrong"))
	ch.Read(make([]byte, 1))

	_, ok := ch.Done()
	assert.False(t, ok)
}

func TestAllRequiresEveryBackend(t *testing.T) {
	pass := TokenFunc(func(token []byte) (string, error) { return "glenda", nil })
	fail := TokenFunc(func(token []byte) (string, error) { return "", errors.New("no") })

	be := All(pass, fail)
	ch, err := be.NewChannel("glenda", "")
	require.NoError(t, err)

	ch.Write([]byte("x"))
	ch.Read(make([]byte, 1))

	_, ok := ch.Done()
	assert.False(t, ok, "All must fail if any constituent backend fails")
}

func TestAnySucceedsWithOneBackend(t *testing.T) {
	pass := TokenFunc(func(token []byte) (string, error) { return "glenda", nil })
	fail := TokenFunc(func(token []byte) (string, error) { return "", errors.New("no") })

	be := Any(fail, pass)
	ch, err := be.NewChannel("glenda", "")
	require.NoError(t, err)

	ch.Write([]byte("x"))
	ch.Read(make([]byte, 1))

	uname, ok := ch.Done()
	assert.True(t, ok, "Any must succeed if at least one constituent backend succeeds")
	assert.Equal(t, "glenda", uname)
}
