package sys

import (
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumericOwnerResolvesCurrentUser(t *testing.T) {
	me, err := user.Current()
	if err != nil {
		t.Skip("no user database available in this environment")
	}
	uid, _ := NumericOwner(me.Username, me.Username)
	assert.NotEqual(t, NoUid, uid, "NumericOwner should resolve the running user's own uid")
}

func TestNumericOwnerUnknownUser(t *testing.T) {
	uid, gid := NumericOwner("no-such-user-xyz", "no-such-group-xyz")
	assert.Equal(t, NoUid, uid)
	assert.Equal(t, NoUid, gid)
}
