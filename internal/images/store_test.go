package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStore_SaveResizesWideImages(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "/images/", 100)

	url, err := store.Save(pngBytes(t, 400, 200), ".PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	f, err := os.Open(filepath.Join(dir, strings.TrimPrefix(url, "/images/")))
	require.NoError(t, err)
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestStore_SaveKeepsSmallImages(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "/images", 0)

	url, err := store.Save(pngBytes(t, 40, 30), ".jpg")
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, filepath.Base(url)))
	require.NoError(t, err)
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 40, cfg.Width)
}

func TestStore_SameContentSameName(t *testing.T) {
	store := NewStore(t.TempDir(), "/images", 800)
	data := pngBytes(t, 10, 10)

	a, err := store.Save(data, ".png")
	require.NoError(t, err)
	b, err := store.Save(data, ".png")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStore_Rejects(t *testing.T) {
	store := NewStore(t.TempDir(), "/images", 800)

	_, err := store.Save(pngBytes(t, 10, 10), ".gif")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = store.Save([]byte("not an image"), ".png")
	assert.Error(t, err)
}

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension(".JPG"))
	assert.True(t, AllowedExtension(".jpeg"))
	assert.True(t, AllowedExtension(".png"))
	assert.False(t, AllowedExtension(".heic"))
	assert.Equal(t, "image/png", MIMEType(".PNG"))
	assert.Equal(t, "image/jpeg", MIMEType(".jpeg"))
}

func TestWriteFile_FailedWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc.png")

	err := writeFile(path, func(w io.Writer) error {
		if _, err := w.Write([]byte("partial")); err != nil {
			return err
		}
		return errors.New("encoder failed")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoder failed")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteFile_ReplacesTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc.png")

	require.NoError(t, writeFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("image bytes"))
		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
