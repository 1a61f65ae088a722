package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	headers, err := ParseHeaders(`# Direct3D 9
um/d3d9.h
um/d3d9caps.h   # caps

   d3d11shader.h
`)
	require.NoError(t, err)
	assert.Equal(t, []Header{
		{Display: "d3d9.h", Path: "um/d3d9.h", Ordinal: 0},
		{Display: "d3d9caps.h", Path: "um/d3d9caps.h", Ordinal: 1},
		{Display: "d3d11shader.h", Path: "d3d11shader.h", Ordinal: 2},
	}, headers)
}

func TestParseHeadersRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := ParseHeaders("d3d9.h\n./d3d9.h\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestHeaderMatches(t *testing.T) {
	t.Parallel()

	h := Header{Display: "d3d9.h", Path: "d3d9.h"}
	tests := []struct {
		owning string
		want   bool
	}{
		{"d3d9.h", true},
		{"um/d3d9.h", true},
		{`um\d3d9.h`, true},
		{"um/xd3d9.h", false},
		{"d3d9.hpp", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.Matches(tt.owning), tt.owning)
	}
}

func TestLoadHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "headers.txt")
	require.NoError(t, os.WriteFile(path, []byte("d3d9.h\n"), 0o644))

	headers, err := LoadHeaders(path)
	require.NoError(t, err)
	assert.Len(t, headers, 1)

	_, err = LoadHeaders(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
