package gateway

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/usecase"
)

var allowedPhotoExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".heic": true,
}

// LocalPhotoStorage writes uploads under dir and serves them from baseURL.
type LocalPhotoStorage struct {
	dir     string
	baseURL string
}

func NewLocalPhotoStorage(dir, baseURL string) *LocalPhotoStorage {
	return &LocalPhotoStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *LocalPhotoStorage) Save(ctx context.Context, prefix, filename string, data []byte) (string, error) {
	_, span := tracer.Start(ctx, "PhotoStorage.Gateway.Save")
	defer span.End()

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedPhotoExt[ext] {
		return "", domain.Validationf("desteklenmeyen dosya türü: %s", ext)
	}

	folder := filepath.Join(s.dir, filepath.Base(prefix))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "create media folder")
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(folder, name), data, 0o644); err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "write media file")
	}

	return s.baseURL + "/" + filepath.Base(prefix) + "/" + name, nil
}

// Delete removes a file written by Save. Urls outside baseURL are ignored.
func (s *LocalPhotoStorage) Delete(ctx context.Context, url string) error {
	_, span := tracer.Start(ctx, "PhotoStorage.Gateway.Delete")
	defer span.End()

	rel, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return nil
	}
	prefix, name, ok := strings.Cut(rel, "/")
	if !ok || !safeSegment(prefix) || !safeSegment(name) {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, prefix, name))
	if err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		return errors.Wrap(err, "remove media file")
	}
	return nil
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && filepath.Base(s) == s && !strings.ContainsAny(s, `/\`)
}

var _ usecase.PhotoStorage = (*LocalPhotoStorage)(nil)
