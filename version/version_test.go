package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashFromSettings(t *testing.T) {
	rev := debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef"}
	assert.Equal(t, "", hashFromSettings(nil))
	assert.Equal(t, "0123456", hashFromSettings([]debug.BuildSetting{rev}))
	assert.Equal(t, "0123456-dirty", hashFromSettings([]debug.BuildSetting{
		{Key: "vcs.modified", Value: "true"}, rev,
	}))
	assert.Equal(t, "abc", hashFromSettings([]debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}}))
}

func TestString(t *testing.T) {
	assert.True(t, strings.HasPrefix(String(), "tractor "))
}
