package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
	"gopkg.in/yaml.v3"
)

const sessionFile = "session.yaml"

// FileRepository keeps the session in a yaml file inside the data directory
type FileRepository struct {
	log  zerolog.Logger
	path string
}

// NewFileRepository creates a new file-based repository rooted at dir
func NewFileRepository(log zerolog.Logger, dir string) *FileRepository {
	return &FileRepository{
		log:  log.With().Str("module", "repository").Logger(),
		path: filepath.Join(dir, sessionFile),
	}
}

var _ domain.SessionRepo = (*FileRepository)(nil)

// Get returns an empty session when nothing was stored yet
func (r *FileRepository) Get(ctx context.Context) (*domain.Session, error) {
	s := &domain.Session{}

	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read file %s: %w", r.path, err)
	}

	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml from %s: %w", r.path, err)
	}

	return s, nil
}

// Store writes the session through a temporary file so readers never see a
// partial document
func (r *FileRepository) Store(ctx context.Context, session *domain.Session) error {
	b, err := yaml.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal yaml: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", r.path, err)
	}

	r.log.Debug().Str("path", r.path).Str("server", session.ServerURL).Bool("logged_in", session.LoggedIn).Msg("stored session")
	return nil
}

// ReadExtensionExport decodes a storage dump written by the browser extension
func ReadExtensionExport(path string) (*domain.ExtensionExport, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	export := &domain.ExtensionExport{}
	if err := json.Unmarshal(body, export); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json from %s: %w", path, err)
	}

	return export, nil
}
