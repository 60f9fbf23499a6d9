package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"fault-triage/backend/internal/store"
)

// ErrArtifactNotFound is returned by Read when no artifact exists under the name.
var ErrArtifactNotFound = errors.New("artifact not found")

// Store persists serialized pipelines. Write always replaces the whole artifact.
type Store interface {
	Write(name string, data []byte) error
	Read(name string) ([]byte, error)
}

// FileStore keeps artifacts as files. Names are paths, relative names resolve under Dir.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(name string) string {
	name = filepath.Clean(strings.TrimSpace(name))
	if filepath.IsAbs(name) || s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// Write stores data through a temp file and rename so readers never see a half-written artifact.
func (s *FileStore) Write(name string, data []byte) error {
	target := s.path(name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write artifact %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close artifact %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace artifact %s: %w", target, err)
	}
	return nil
}

// Read returns the artifact bytes.
func (s *FileStore) Read(name string) ([]byte, error) {
	target := s.path(name)
	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, target)
		}
		return nil, fmt.Errorf("read artifact %s: %w", target, err)
	}
	return data, nil
}

// DBStore keeps artifacts as rows in the SQLite database.
type DBStore struct {
	db *store.Database
}

// NewDBStore wraps db as an artifact store.
func NewDBStore(db *store.Database) *DBStore {
	return &DBStore{db: db}
}

// Write upserts the artifact row.
func (s *DBStore) Write(name string, data []byte) error {
	if err := s.db.PutArtifact(name, data); err != nil {
		return fmt.Errorf("store artifact %s: %w", name, err)
	}
	return nil
}

// Read returns the stored artifact bytes.
func (s *DBStore) Read(name string) ([]byte, error) {
	row, err := s.db.GetArtifact(name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
		return nil, fmt.Errorf("load artifact %s: %w", name, err)
	}
	return row.Data, nil
}
