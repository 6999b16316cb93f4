package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)

	assert.Contains(t, info.String(), "rollup")
	assert.Contains(t, info.String(), "Version:")
	assert.Contains(t, info.String(), "Go Version:")
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{
		Version:   "v1.0.0",
		BuildDate: "2024-01-01T00:00:00Z",
		GitCommit: "abc123def456",
		GoVersion: "go1.24.4",
		Components: []Module{
			{Path: "modernc.org/sqlite", Version: "v1.39.1"},
		},
	}

	str := info.String()
	assert.Contains(t, str, "Version: v1.0.0\n")
	assert.Contains(t, str, "Build Date: 2024-01-01T00:00:00Z")
	assert.Contains(t, str, "Git Commit: abc123d") // truncated
	assert.Contains(t, str, "Go Version: go1.24.4")
	assert.Contains(t, str, "modernc.org/sqlite v1.39.1")
	assert.NotContains(t, str, "(dirty)")
}

func TestBuildInfoStringUnknown(t *testing.T) {
	info := BuildInfo{
		Version:   "dev",
		BuildDate: unknownValue,
		GitCommit: unknownValue,
		Dirty:     true,
	}

	str := info.String()
	assert.Contains(t, str, "Version: dev (dirty)")
	assert.NotContains(t, str, "Build Date")
	assert.NotContains(t, str, "Git Commit")
}

func TestUserAgent(t *testing.T) {
	originalVersion := Version
	defer func() { Version = originalVersion }()

	Version = "v1.0.0"
	assert.Equal(t, "rollup/v1.0.0", UserAgent())

	Version = "dev"
	assert.Equal(t, "rollup/dev", UserAgent())
}

func TestIsRelease(t *testing.T) {
	originalVersion := Version
	defer func() { Version = originalVersion }()

	tests := []struct {
		version  string
		expected bool
	}{
		{"v1.0.0", true},
		{"1.0.0", true},
		{"dev", false},
		{"v1.0.0-rc.1", false},
		{"v1.0.0-dirty", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			Version = tt.version
			assert.Equal(t, tt.expected, IsRelease())
		})
	}
}
