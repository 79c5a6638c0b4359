package securestore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const keyInstallID = "install_id"

// InstallID returns the identifier of this installation, generating and
// persisting one on first use. It survives sign-out.
func (s *Store) InstallID() (string, error) {
	raw, err := s.Get(keyInstallID)
	if err == nil && len(raw) > 0 {
		return string(raw), nil
	}
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate install id: %w", err)
	}
	if err := s.Set(keyInstallID, []byte(id.String())); err != nil {
		return "", err
	}
	return id.String(), nil
}
