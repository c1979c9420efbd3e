package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	data, err := parseFields([]string{"title=gmail", "password=p1", "notes=-", "url="})
	require.NoError(t, err)

	require.Contains(t, data, "title")
	assert.Equal(t, "gmail", *data["title"])
	assert.Equal(t, "p1", *data["password"])

	// "key=-" removes, "key=" sets an empty value.
	assert.Nil(t, data["notes"])
	require.Contains(t, data, "url")
	assert.Equal(t, "", *data["url"])
}

func TestParseFieldsRejectsMalformed(t *testing.T) {
	for _, bad := range [][]string{{"title"}, {"=x"}, {"title=x", "oops"}} {
		_, err := parseFields(bad)
		assert.Error(t, err, bad)
	}
}
