package wire

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileModeToDirRoundTrip(t *testing.T) {
	cases := []os.FileMode{
		0644,
		0755 | os.ModeDir,
		0777 | os.ModeSymlink,
		0644 | os.ModeAppend,
		0600 | os.ModeSetuid,
	}
	for _, fm := range cases {
		dm := FileModeToDir(fm)
		got := DirModeToFileMode(dm)
		assert.Equal(t, fm, got, "round trip for %s", fm)
	}
}

func TestQidTypeForMode(t *testing.T) {
	assert.Equal(t, uint8(QTDIR), QidTypeForMode(DMDIR))
	assert.Equal(t, uint8(QTSYMLINK), QidTypeForMode(DMSYMLINK))
	assert.Equal(t, uint8(0), QidTypeForMode(0644))
	assert.Equal(t, uint8(QTDIR|QTAPPEND), QidTypeForMode(DMDIR|DMAPPEND))
}

func TestDirIsDir(t *testing.T) {
	assert.True(t, Dir{Mode: DMDIR | 0755}.IsDir())
	assert.False(t, Dir{Mode: 0644}.IsDir())
}
