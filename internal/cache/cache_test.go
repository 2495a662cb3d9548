package cache

import (
	"testing"

	"cppmunge/internal/catalog"

	"github.com/stretchr/testify/assert"
)

func TestRowHash(t *testing.T) {
	row := catalog.Row{
		Key:         catalog.Key{Text: `"Hello"`, SrcFile: `"Foo.cxx"`, Class: `"MyWidget"`},
		Lang:        "EN",
		Translation: `"Hello"`,
	}
	base := RowHash("Trans.txt", row)
	assert.Len(t, base, 64)

	retranslated := row
	retranslated.Translation = `"Hi"`
	assert.Equal(t, base, RowHash("Trans.txt", retranslated), "translation is not part of the identity")

	otherLang := row
	otherLang.Lang = "DE"
	assert.NotEqual(t, base, RowHash("Trans.txt", otherLang))

	withParams := row
	withParams.Params = []catalog.Param{{Name: "%1", Value: "1"}}
	assert.NotEqual(t, base, RowHash("Trans.txt", withParams))

	assert.NotEqual(t, base, RowHash("Other.txt", row))
}

func TestFormatParams(t *testing.T) {
	assert.Equal(t, "", formatParams(nil))
	assert.Equal(t, "%1=1:%2=5", formatParams([]catalog.Param{{Name: "%1", Value: "1"}, {Name: "%2", Value: "5"}}))
}
