package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/dmitrijs2005/gophtalk/internal/filex"
)

// Blob is an opened stored file. The caller closes Body.
type Blob struct {
	Body    io.ReadCloser
	Size    int64
	ModTime time.Time
}

// BlobStore keeps uploaded file content by id. Open and Exists report
// missing ids with common.ErrorNotFound and false respectively.
type BlobStore interface {
	Put(ctx context.Context, id string, content []byte) error
	Open(ctx context.Context, id string) (*Blob, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// LocalBlobStore stores files flat in a directory on disk.
type LocalBlobStore struct {
	BaseDir string
}

func NewLocalBlobStore(baseDir string) (*LocalBlobStore, error) {
	dir, err := filex.EnsureDir(baseDir)
	if err != nil {
		return nil, err
	}
	return &LocalBlobStore{BaseDir: dir}, nil
}

func (s *LocalBlobStore) path(id string) string {
	return filepath.Join(s.BaseDir, id)
}

func (s *LocalBlobStore) Put(ctx context.Context, id string, content []byte) error {
	return filex.WriteFileAtomic(s.path(id), content, 0o644)
}

func (s *LocalBlobStore) Open(ctx context.Context, id string) (*Blob, error) {
	fi, err := os.Stat(s.path(id))
	if os.IsNotExist(err) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, common.ErrorNotFound
	}

	f, err := os.Open(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	return &Blob{Body: f, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (s *LocalBlobStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := os.Stat(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
