package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	args := []string{"edit", "-f", "db.fortress", "title=x", "-t=5", "-v"}

	assert.Equal(t, []string{"-f", "db.fortress"}, FilterArgs(args, []string{"-f"}))
	assert.Equal(t, []string{"-t=5"}, FilterArgs(args, []string{"-t"}))
	assert.Empty(t, FilterArgs(args, []string{"-x"}))
}

func TestStripArgs(t *testing.T) {
	args := []string{"-f", "db.fortress", "edit", "title=x", "-t=5"}

	rest := StripArgs(args, []string{"-f", "-t", "-c", "-config"})
	assert.Equal(t, []string{"edit", "title=x"}, rest)

	// Unknown flags pass through.
	assert.Equal(t, []string{"gen", "-v"}, StripArgs([]string{"gen", "-v"}, []string{"-f"}))
}
