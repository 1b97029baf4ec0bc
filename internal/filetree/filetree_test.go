package filetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasic(t *testing.T) {
	fs := New()
	fs.Put("/usr/bin", 0, nil)
	fs.Put("/usr/lib64", 0, nil)

	dir, ok := fs.Get("/usr/../usr/./././/")
	require.True(t, ok)
	names := make([]string, len(dir.Children))
	for i, entry := range dir.Children {
		names[i] = entry.Name()
	}
	assert.ElementsMatch(t, []string{"bin", "lib64"}, names)
}

func TestSameValue(t *testing.T) {
	fs := New()
	fs.Put("/usr/bin/emacs", 0, "vi")

	entry, ok := fs.Get("/usr/bin")
	require.True(t, ok, "/usr/bin not found")
	direct, ok := fs.Get("/usr/bin/emacs")
	require.True(t, ok, "/usr/bin/emacs not found")
	assert.Equal(t, "vi", direct.Value)
	require.Len(t, entry.Children, 1)
	assert.Equal(t, direct.Value, entry.Children[0].Value)
}

func TestMatch(t *testing.T) {
	const (
		ancestor   = "/usr"
		descendant = "/usr/local/bin/httpd"
	)
	fs := New()
	fs.Put(ancestor, 0, "foo")

	entry, ok := fs.LongestPrefix(descendant)
	require.True(t, ok, "LongestPrefix did not find ancestor %s of %s", ancestor, descendant)
	assert.Equal(t, ancestor, entry.FullName)
	assert.Equal(t, "foo", entry.Value)
}

func TestDelete(t *testing.T) {
	fs := New()
	fs.Put("/usr/bin/emacs", 0, "vi")
	fs.Put("/usr/bin/vim", 0, "vi")

	fs.Delete("/usr/bin/emacs")

	_, ok := fs.Get("/usr/bin/emacs")
	assert.False(t, ok, "Delete did not remove the entry")

	parent, ok := fs.Get("/usr/bin")
	require.True(t, ok)
	names := make([]string, len(parent.Children))
	for i, c := range parent.Children {
		names[i] = c.Name()
	}
	assert.Equal(t, []string{"vim"}, names, "Delete must remove the entry from its parent's Children")
}
