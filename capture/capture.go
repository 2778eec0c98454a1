// Package capture supplies emulator frames to the vision pipeline.
// Frame acquisition is platform-specific, so the package defines a
// small Source interface with two portable implementations: a
// directory watcher fed by the emulator's own screenshot output, and
// a null source that reports capture as unavailable rather than
// fabricating frames.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoFrame means no frame is currently available from the source.
var ErrNoFrame = errors.New("no frame available")

// Source produces the current emulator frame.
type Source interface {
	Frame(ctx context.Context) (image.Image, error)
}

// EncodeJPEG renders a frame for model requests. Quality trades
// prompt size against legibility of menu text; 80 keeps both workable.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("cannot encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// NullSource always reports frames as unavailable. Used when the
// agent runs blind on memory state alone.
type NullSource struct{}

func (NullSource) Frame(context.Context) (image.Image, error) {
	return nil, ErrNoFrame
}

// DirSource serves the newest image file from a directory the
// emulator writes screenshots into.
type DirSource struct {
	Dir string
	// MaxAge rejects frames older than this; zero accepts any age.
	MaxAge time.Duration
}

func (s *DirSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read frame dir %q: %w", s.Dir, err)
	}

	var newest string
	var newestTime time.Time
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = e.Name()
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return nil, ErrNoFrame
	}
	if s.MaxAge > 0 && time.Since(newestTime) > s.MaxAge {
		return nil, ErrNoFrame
	}

	f, err := os.Open(filepath.Join(s.Dir, newest))
	if err != nil {
		return nil, fmt.Errorf("cannot open frame %q: %w", newest, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("cannot decode frame %q: %w", newest, err)
	}
	return img, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}
