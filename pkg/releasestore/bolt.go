package releasestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/immune-gmbh/firmware-publisher/pkg/release"
)

var (
	bucketRelease = []byte("release")
	keyFirmware   = []byte("firmware")
	keyVersion    = []byte("version")
)

// Bolt keeps the release in a bbolt database. Both values are written in a
// single transaction, so readers never see a version paired with another
// release's firmware.
type Bolt struct {
	db *bolt.DB
}

var _ Store = (*Bolt)(nil)

func newBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("unable to create the directory for '%s': %w", path, err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open bbolt database '%s': %w", path, err)
	}
	return &Bolt{db: db}, nil
}

func (s *Bolt) ReadVersion(ctx context.Context) (string, error) {
	b, err := s.get(keyVersion)
	if err != nil {
		return "", err
	}
	return release.DecodeVersionRecord(b), nil
}

func (s *Bolt) ReadFirmware(ctx context.Context) ([]byte, error) {
	return s.get(keyFirmware)
}

// get returns a copy of the value, since bbolt values are valid only
// within the transaction.
func (s *Bolt) get(key []byte) ([]byte, error) {
	var result []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRelease)
		if bucket == nil {
			return ErrNotFound{}
		}
		// Get cannot tell an empty value from an absent key
		k, v := bucket.Cursor().Seek(key)
		if !bytes.Equal(k, key) {
			return ErrNotFound{}
		}
		result = append([]byte{}, v...)
		return nil
	})
	switch {
	case errors.As(err, &ErrNotFound{}):
		return nil, err
	case err != nil:
		return nil, ErrRead{What: string(key), Err: err}
	}
	return result, nil
}

func (s *Bolt) WriteRelease(ctx context.Context, version string, firmware []byte) error {
	if firmware == nil {
		firmware = []byte{}
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketRelease)
		if err != nil {
			return ErrSaveFirmware{Err: err}
		}
		if err := bucket.Put(keyFirmware, firmware); err != nil {
			return ErrSaveFirmware{Err: err}
		}
		if err := bucket.Put(keyVersion, release.EncodeVersionRecord(version)); err != nil {
			return ErrWriteVersion{Err: err}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.As(err, &ErrSaveFirmware{}) || errors.As(err, &ErrWriteVersion{}) {
		return err
	}
	// the commit failed: nothing was persisted
	return ErrSaveFirmware{Err: err}
}

func (s *Bolt) Close() error {
	return s.db.Close()
}
