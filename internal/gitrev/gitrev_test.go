package gitrev

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevision(t *testing.T) {
	sha, ok := Revision("v0.88-14-g2414721")
	assert.True(t, ok)
	assert.Equal(t, "2414721", sha)

	_, ok = Revision("v0.88")
	assert.False(t, ok)
	_, ok = Revision("v0.88-g")
	assert.False(t, ok)
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, "v0.88-14-g2414721", nil))
	assert.Equal(t, "#define GIT_DESCRIPTION \"v0.88-14-g2414721\"\n#define GIT_REVISION 0x2414721\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteHeader(&buf, "", errors.New("not a git repository")))
	assert.Equal(t, "#define GIT_DESCRIPTION \"<error>\"\n#define GIT_REVISION -1\n", buf.String())
}
