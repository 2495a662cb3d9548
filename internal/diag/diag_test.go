package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	at := Position{File: `src\FXFile.cxx`, Line: 42}
	assert.Equal(t, `"src\FXFile.cxx", line 42: oops`, Format(GNU, at, "oops"))
	assert.Equal(t, `src\FXFile.cxx(42) : oops`, Format(MSVC, at, "oops"))
}

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, GNU)

	r.Warnf(Position{File: "Foo.cxx", Line: 3}, "Exception code not specified")
	r.Errorf(Position{File: "Foo.cxx", Line: 9}, "PROGRAM FAILED!!!")

	assert.Equal(t, 2, r.Count())
	assert.Equal(t,
		"\"Foo.cxx\", line 3: WARNING: Exception code not specified\n"+
			"\"Foo.cxx\", line 9: PROGRAM FAILED!!!\n",
		buf.String())
}

func TestNilReporter(t *testing.T) {
	var r *Reporter
	r.Warnf(Position{}, "ignored")
	assert.Equal(t, 0, r.Count())
}
