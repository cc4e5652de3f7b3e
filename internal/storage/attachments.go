package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// AllowedScreenshotExtensions lists accepted screenshot file types.
var AllowedScreenshotExtensions = []string{".jpg", ".jpeg", ".png"}

// StagedFile is an upload written to the store but not yet bound to a query.
type StagedFile struct {
	path      string
	committed bool
}

// AttachmentStore persists screenshot uploads in two steps: Stage writes the
// bytes under a private name, Commit publishes them under the query's name
// once the query id is known to be ours.
type AttachmentStore interface {
	Stage(ctx context.Context, originalName string, content io.Reader) (*StagedFile, error)
	// Ref is the reference a staged file will have when committed for queryID.
	Ref(queryID string, staged *StagedFile) string
	Commit(ctx context.Context, staged *StagedFile, ref string) error
	// Discard removes an uncommitted staged file; committed files are left alone.
	Discard(ctx context.Context, staged *StagedFile)
}

type diskStore struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger
}

// NewDiskStore stores attachments as files under dir.
func NewDiskStore(dir string, maxBytes int64, logger *zap.Logger) (AttachmentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &diskStore{dir: dir, maxBytes: maxBytes, logger: logger}, nil
}

// ScreenshotFileName is the stored name for a query's screenshot.
func ScreenshotFileName(queryID, originalName string) string {
	return queryID + "_screenshot" + filepath.Ext(originalName)
}

// ValidateScreenshotName rejects files whose extension is not an accepted image type.
func ValidateScreenshotName(originalName string) error {
	ext := strings.ToLower(filepath.Ext(originalName))
	for _, allowed := range AllowedScreenshotExtensions {
		if ext == allowed {
			return nil
		}
	}
	return apperrors.NewValidationError("screenshot must be a .jpg, .jpeg or .png file", map[string]any{
		"file_name": originalName,
	})
}

func (s *diskStore) Stage(_ context.Context, originalName string, content io.Reader) (*StagedFile, error) {
	if err := ValidateScreenshotName(originalName); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(s.dir, ".staging-*"+filepath.Ext(filepath.Base(originalName)))
	if err != nil {
		return nil, apperrors.NewStorageError("unable to store screenshot", err)
	}
	staged := &StagedFile{path: f.Name()}

	reader := content
	if s.maxBytes > 0 {
		reader = io.LimitReader(content, s.maxBytes+1)
	}
	written, copyErr := io.Copy(f, reader)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		s.remove(staged.path)
		return nil, apperrors.NewStorageError("unable to store screenshot", copyErr)
	case closeErr != nil:
		s.remove(staged.path)
		return nil, apperrors.NewStorageError("unable to store screenshot", closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		s.remove(staged.path)
		return nil, apperrors.NewValidationError("screenshot too large", map[string]any{"max_bytes": s.maxBytes})
	}

	s.logger.Debug("screenshot staged", zap.String("path", staged.path), zap.Int64("bytes", written))
	return staged, nil
}

func (s *diskStore) Ref(queryID string, staged *StagedFile) string {
	return filepath.Join(s.dir, ScreenshotFileName(queryID, staged.path))
}

func (s *diskStore) Commit(_ context.Context, staged *StagedFile, ref string) error {
	if staged.committed {
		return nil
	}
	if err := os.Rename(staged.path, ref); err != nil {
		return apperrors.NewStorageError("unable to store screenshot", err)
	}
	staged.committed = true
	s.logger.Debug("screenshot stored", zap.String("ref", ref))
	return nil
}

func (s *diskStore) Discard(_ context.Context, staged *StagedFile) {
	if staged == nil || staged.committed {
		return
	}
	s.remove(staged.path)
}

func (s *diskStore) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to discard staged screenshot", zap.String("path", path), zap.Error(err))
	}
}
