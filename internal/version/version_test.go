package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, strings.TrimPrefix(runtime.Version(), "go"), info.Go)
	assert.NotEmpty(t, info.Version)
}

func TestString(t *testing.T) {
	info := Info{Version: "v1.0.0", CELGo: "v0.26.1", Commit: "0123456789abcdef"}
	assert.Equal(t, "v1.0.0 (cel-go v0.26.1) 0123456789ab", info.String())
	assert.Equal(t, "devel", Info{Version: "devel"}.String())
}
