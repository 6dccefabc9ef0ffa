package cookies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/law-makers/mediacrawl/pkg/models"
)

// KeyringService is the service name for keyring storage
const KeyringService = "mediacrawl"

// KeyringStore keeps a jar in the OS keyring, encrypted by the OS
type KeyringStore struct {
	Service string
	Key     string
}

func (s *KeyringStore) Load(ctx context.Context) ([]models.Cookie, error) {
	data, err := keyring.Get(s.Service, s.Key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load from keyring: %w", err)
	}

	var jar []models.Cookie
	if err := json.Unmarshal([]byte(data), &jar); err != nil {
		return nil, fmt.Errorf("failed to deserialize cookie jar: %w", err)
	}
	return jar, nil
}

func (s *KeyringStore) Save(ctx context.Context, cookies []models.Cookie) error {
	if cookies == nil {
		cookies = []models.Cookie{}
	}
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to serialize cookie jar: %w", err)
	}
	if err := keyring.Set(s.Service, s.Key, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear(ctx context.Context) error {
	err := keyring.Delete(s.Service, s.Key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Location() string {
	return "keyring:" + s.Service + "/" + s.Key
}
