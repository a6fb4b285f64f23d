package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// DefaultMaxBytes is the per-file size ceiling.
	DefaultMaxBytes int64 = 5 * 1024 * 1024
)

var (
	DefaultAllowedExtensions = []string{".jpeg", ".jpg", ".png", ".gif"}
	DefaultAllowedMediaTypes = []string{"image/jpeg", "image/png", "image/gif"}
)

// Policy controls which uploads are accepted.
type Policy struct {
	MaxBytes          int64
	AllowedExtensions []string
	AllowedMediaTypes []string
}

// StoredFile describes an accepted upload written into the content directory.
type StoredFile struct {
	Path      string
	Name      string
	MediaType string
	SizeBytes int64
}

// Receiver validates inbound image files and persists them under a unique name.
type Receiver struct {
	dir        string
	maxBytes   int64
	extensions map[string]struct{}
	mediaTypes map[string]struct{}
	now        func() time.Time
}

// NewReceiver creates a Receiver writing into dir.
func NewReceiver(dir string, policy Policy) (*Receiver, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, ".tmp"), 0o755); err != nil {
		return nil, err
	}

	maxBytes := policy.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	exts := policy.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	types := policy.AllowedMediaTypes
	if len(types) == 0 {
		types = DefaultAllowedMediaTypes
	}

	r := &Receiver{
		dir:        abs,
		maxBytes:   maxBytes,
		extensions: map[string]struct{}{},
		mediaTypes: map[string]struct{}{},
		now:        time.Now,
	}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.extensions[ext] = struct{}{}
	}
	for _, mt := range types {
		if normalized := normalizeMediaType(mt); normalized != "" {
			r.mediaTypes[normalized] = struct{}{}
		}
	}
	return r, nil
}

// Dir returns the absolute content directory.
func (r *Receiver) Dir() string {
	return r.dir
}

// MaxBytes returns the per-file size ceiling.
func (r *Receiver) MaxBytes() int64 {
	return r.maxBytes
}

// Save checks filename, declared media type and sniffed content, then writes
// the bytes to <unix-millis>-<uuid><ext> in the content directory.
func (r *Receiver) Save(ctx context.Context, filename, declaredMediaType string, content io.Reader) (StoredFile, error) {
	var zero StoredFile
	if content == nil {
		return zero, ErrEmptyFile
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := r.extensions[ext]; !ok {
		return zero, ErrUnsupportedType
	}
	declared := normalizeMediaType(declaredMediaType)
	if _, ok := r.mediaTypes[declared]; !ok {
		return zero, ErrUnsupportedType
	}

	tmp, err := os.CreateTemp(filepath.Join(r.dir, ".tmp"), "upload-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, io.LimitReader(content, r.maxBytes+1))
	if err != nil {
		cleanup()
		return zero, err
	}
	if n == 0 {
		cleanup()
		return zero, ErrEmptyFile
	}
	if n > r.maxBytes {
		cleanup()
		return zero, ErrFileTooLarge
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}

	detected, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return zero, err
	}
	sniffed := normalizeMediaType(detected.String())
	if _, ok := r.mediaTypes[sniffed]; !ok {
		_ = os.Remove(tmpPath)
		return zero, ErrUnsupportedType
	}

	name := fmt.Sprintf("%d-%s%s", r.now().UnixMilli(), uuid.NewString(), ext)
	dst := filepath.Join(r.dir, name)
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return zero, err
	}

	return StoredFile{Path: dst, Name: name, MediaType: sniffed, SizeBytes: n}, nil
}

// IsRejection reports whether err is a validation failure rather than an I/O error.
func IsRejection(err error) bool {
	return errors.Is(err, ErrEmptyFile) || errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrUnsupportedType)
}

func normalizeMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return ""
	}
	parsed = strings.ToLower(parsed)
	if parsed == "image/jpg" {
		return "image/jpeg"
	}
	return parsed
}
