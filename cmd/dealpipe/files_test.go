package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFacility(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "t12.csv")
	b := filepath.Join(dir, "census.txt")
	require.NoError(t, os.WriteFile(a, []byte("month,revenue"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("ADC 92"), 0644))

	up, err := parseFacility("Sunrise = " + a + ", " + b)
	require.NoError(t, err)
	assert.Equal(t, "Sunrise", up.Name)
	require.Len(t, up.Files, 2)
	assert.Equal(t, "t12.csv", up.Files[0].Name)
	assert.Equal(t, int64(13), up.Files[0].Size)
	assert.Equal(t, "census.txt", up.Files[1].Name)

	for _, bad := range []string{"Sunrise", "=a.pdf", "Sunrise=", "Sunrise=" + filepath.Join(dir, "missing.pdf")} {
		_, err := parseFacility(bad)
		assert.Error(t, err, bad)
	}
}
