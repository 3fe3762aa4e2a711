package images

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

// ErrUnsupportedFormat is returned for anything other than JPEG or PNG.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

// AllowedExtension reports whether ext (with its dot, any case) is accepted.
func AllowedExtension(ext string) bool {
	return allowedExtensions[strings.ToLower(ext)]
}

// MIMEType returns the content type for an accepted extension.
func MIMEType(ext string) string {
	if strings.ToLower(ext) == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}

// Store writes resized recipe images to a directory served statically.
type Store struct {
	dir       string
	urlPrefix string
	width     uint
}

// NewStore creates a Store writing to dir. Saved images are reachable under
// urlPrefix and scaled down to width pixels when wider.
func NewStore(dir, urlPrefix string, width uint) *Store {
	if width == 0 {
		width = 800
	}
	return &Store{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/"), width: width}
}

// Dir is the directory images are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save decodes the image, resizes it and writes it under its content hash.
// It returns the public URL of the saved file.
func (s *Store) Save(imageData []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	if uint(img.Bounds().Dx()) > s.width {
		img = resize.Resize(s.width, 0, img, resize.Lanczos3)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}

	sum := sha256.Sum256(imageData)
	name := hex.EncodeToString(sum[:]) + ext

	err = writeFile(filepath.Join(s.dir, name), func(w io.Writer) error {
		if ext == ".png" {
			return png.Encode(w, img)
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
	})
	if err != nil {
		return "", err
	}

	return s.urlPrefix + "/" + name, nil
}

// writeFile writes through a temp file in the target directory and renames it
// into place, so a failed write never leaves a partial file at path.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store image file: %w", err)
	}
	return nil
}
