package feed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.txt")
	// Windows line endings and a trailing blank line on purpose.
	require.NoError(t, os.WriteFile(path, []byte("stop\r\nyield\r\nspeed_limit\n\n"), 0644))

	names, err := ReadCategories(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"stop", "yield", "speed_limit"}, names)
}

func TestReadCategoriesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0644))
	_, err := ReadCategories(path)
	assert.Error(t, err)
}

func TestLoadAnnotations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.csv")
	data := "images/a.png,10,20,50,60,stop\nimages/b.png,0,0,32,32,yield\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	paths, labels, err := LoadAnnotations(path)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Len(t, labels, 2)
	assert.Equal(t, "images/a.png", paths[0])
	assert.Equal(t, "stop", labels[0].Name)
	assert.InDelta(t, 30, labels[0].Box.XC, 1e-6)
	assert.InDelta(t, 40, labels[0].Box.YC, 1e-6)
	assert.InDelta(t, 40, labels[0].Box.W, 1e-6)
	assert.InDelta(t, 40, labels[0].Box.H, 1e-6)
}

func TestLoadAnnotationsBadRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.csv")
	require.NoError(t, os.WriteFile(path, []byte("images/a.png,x,20,50,60,stop\n"), 0644))
	_, _, err := LoadAnnotations(path)
	assert.Error(t, err)
}

func TestOneHotEncoder(t *testing.T) {
	e := NewOneHotEncoder(4)
	assert.Equal(t, 4, e.NumClasses())
	assert.Equal(t, []float32{0, 0, 1, 0}, e.Encode(2))
	assert.Equal(t, []float32{0, 0, 0, 0}, e.Encode(7), "out-of-range index encodes to zeros")
}
