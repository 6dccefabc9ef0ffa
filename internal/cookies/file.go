package cookies

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/law-makers/mediacrawl/internal/utils/output"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// FileStore keeps a jar as a JSON array on disk
type FileStore struct {
	Path string
}

func (s *FileStore) Load(ctx context.Context) ([]models.Cookie, error) {
	var jar []models.Cookie
	err := output.LoadJSON(s.Path, &jar)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return jar, nil
}

func (s *FileStore) Save(ctx context.Context, cookies []models.Cookie) error {
	if cookies == nil {
		cookies = []models.Cookie{}
	}
	if err := output.SaveJSON(s.Path, cookies); err != nil {
		return fmt.Errorf("failed to save cookie jar: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	err := os.Remove(s.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cookie jar: %w", err)
	}
	return nil
}

func (s *FileStore) Location() string {
	return s.Path
}
