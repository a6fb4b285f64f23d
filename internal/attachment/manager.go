package attachment

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPublicPath is the URL prefix the content directory is served under.
const DefaultPublicPath = "/uploads"

var (
	// ErrOutsideRoot is returned for paths that do not resolve inside the content directory.
	ErrOutsideRoot = errors.New("path is outside the content directory")
	// ErrMissingFile is returned by Attach when the stored file does not exist.
	ErrMissingFile = errors.New("stored file does not exist")
)

// Manager turns stored upload files into public image references and
// removes them again when an activity drops its image.
type Manager struct {
	root       string
	publicPath string
	logger     *slog.Logger
}

// NewManager creates a Manager over the content directory root, creating it if needed.
func NewManager(root, publicPath string, logger *slog.Logger) (*Manager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("content directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{root: abs, publicPath: normalizePublicPath(publicPath), logger: logger}, nil
}

// Root returns the absolute content directory.
func (m *Manager) Root() string {
	return m.root
}

// PublicPath returns the URL prefix files are served under.
func (m *Manager) PublicPath() string {
	return m.publicPath
}

// Attach builds the public URL for a file already written into the content
// directory and returns it with the file's path relative to that directory.
// The relative path is what Release expects later. The file is not moved.
func (m *Manager) Attach(storedPath, publicBaseURL string) (string, string, error) {
	if m == nil {
		return "", "", fmt.Errorf("attachment manager is not configured")
	}
	path, rel, err := m.resolve(storedPath)
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", ErrMissingFile
		}
		return "", "", err
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("stored path %q is a directory", rel)
	}
	return m.publicURL(publicBaseURL, rel), rel, nil
}

// Release removes the file at imagePath, relative to the content directory or
// absolute inside it. A file that is already gone is not an error.
func (m *Manager) Release(imagePath string) error {
	if m == nil {
		return fmt.Errorf("attachment manager is not configured")
	}
	path, rel, err := m.resolve(imagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("attachment already missing", "path", rel)
			return nil
		}
		return err
	}
	m.logger.Debug("attachment released", "path", rel)
	return nil
}

func (m *Manager) resolve(p string) (string, string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", "", fmt.Errorf("path is required")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.root, p)
	}
	clean := filepath.Clean(p)
	rel, err := filepath.Rel(m.root, clean)
	if err != nil {
		return "", "", ErrOutsideRoot
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", ErrOutsideRoot
	}
	return clean, filepath.ToSlash(rel), nil
}

func (m *Manager) publicURL(base, rel string) string {
	segments := strings.Split(rel, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(strings.TrimSpace(base), "/") + m.publicPath + "/" + strings.Join(segments, "/")
}

func normalizePublicPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return DefaultPublicPath
	}
	return "/" + p
}
