package session

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"docguard/internal/domain"
)

// Claves dentro del bucket de sesión.
const (
	snapshotBucket = "session"
	keyUser        = "user"
	keyTokens      = "tokens"
)

// Snapshot persiste la sesión en disco para sobrevivir reinicios del
// cliente. Nunca guarda el estado 2FA pendiente.
type Snapshot struct {
	db *bbolt.DB
}

// NewSnapshot abre (o crea) la base bbolt en path.
func NewSnapshot(path string) (*Snapshot, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening session snapshot: %w", err)
	}
	return &Snapshot{db: db}, nil
}

// Close cierra la base subyacente.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// Save escribe usuario y tokens como unidad.
func (s *Snapshot) Save(user domain.User, tokens TokenPair) error {
	userData, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding session user: %w", err)
	}
	tokenData, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encoding session tokens: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket))
		if err != nil {
			return err
		}
		if err := b.Put([]byte(keyUser), userData); err != nil {
			return err
		}
		return b.Put([]byte(keyTokens), tokenData)
	})
}

// Load lee el último snapshot guardado. Un snapshot ausente o corrupto se
// reporta como inexistente; en el segundo caso además se limpia el storage.
func (s *Snapshot) Load() (domain.User, TokenPair, bool, error) {
	var (
		user   domain.User
		tokens TokenPair
		found  bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(snapshotBucket))
		if b == nil {
			return nil
		}
		userData := b.Get([]byte(keyUser))
		tokenData := b.Get([]byte(keyTokens))
		if userData == nil || tokenData == nil {
			return nil
		}
		if err := json.Unmarshal(userData, &user); err != nil {
			return errMalformedSnapshot
		}
		if err := json.Unmarshal(tokenData, &tokens); err != nil {
			return errMalformedSnapshot
		}
		found = true
		return nil
	})
	if err == errMalformedSnapshot {
		if clearErr := s.Clear(); clearErr != nil {
			return domain.User{}, TokenPair{}, false, clearErr
		}
		return domain.User{}, TokenPair{}, false, nil
	}
	if err != nil {
		return domain.User{}, TokenPair{}, false, err
	}
	return user, tokens, found, nil
}

// Clear elimina cualquier sesión guardada.
func (s *Snapshot) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(snapshotBucket))
		if b == nil {
			return nil
		}
		if err := b.Delete([]byte(keyUser)); err != nil {
			return err
		}
		return b.Delete([]byte(keyTokens))
	})
}

var errMalformedSnapshot = fmt.Errorf("malformed session snapshot")
