package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

const wipeChunkSize = 1024 * 100

var errKeyCollision = errors.New("row key already taken by another URL")

// ErrStoreExists is returned for a disk store path that is already taken.
// The store is wiped on Destroy, so it must belong to this cache alone.
var ErrStoreExists = errors.New("cache file already exists")

const schema = `CREATE TABLE IF NOT EXISTS assets (
	k    INTEGER PRIMARY KEY,
	url  TEXT NOT NULL,
	blob BLOB NOT NULL
)`

// diskStore keeps large payloads in a private SQLite file. Rows are keyed by
// the xxhash of the URL and hold zstd-compressed bytes.
type diskStore struct {
	path string
	db   *sql.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func openDiskStore(path string) (*diskStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreExists, path)
		}
		return nil, fmt.Errorf("create: %w", err)
	}
	f.Close()

	store, err := initDiskStore(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return store, nil
}

func initDiskStore(path string) (*diskStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(1)

	// everything stays in the one file that gets wiped
	pragmas := []string{
		"PRAGMA journal_mode = MEMORY",
		"PRAGMA synchronous = OFF",
		"PRAGMA secure_delete = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}

	return &diskStore{path: path, db: db, enc: enc, dec: dec}, nil
}

func rowKey(key string) int64 {
	return int64(xxhash.Sum64String(key))
}

func (s *diskStore) put(key string, data []byte) error {
	res, err := s.db.Exec(
		`INSERT INTO assets (k, url, blob) VALUES (?, ?, ?) ON CONFLICT(k) DO NOTHING`,
		rowKey(key), key, s.enc.EncodeAll(data, nil),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errKeyCollision
	}
	return nil
}

func (s *diskStore) get(key string) ([]byte, error) {
	var (
		url  string
		blob []byte
	)
	err := s.db.QueryRow(`SELECT url, blob FROM assets WHERE k = ?`, rowKey(key)).Scan(&url, &blob)
	if err != nil {
		return nil, err
	}
	if url != key {
		return nil, errKeyCollision
	}
	return s.dec.DecodeAll(blob, nil)
}

func (s *diskStore) close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

// wipe zero-fills the file at path and removes it along with any journal.
func wipe(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	zeros := make([]byte, wipeChunkSize)
	remaining := info.Size()
	for remaining > 0 {
		n := int64(len(zeros))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(zeros[:n]); err != nil {
			f.Close()
			return err
		}
		remaining -= n
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	_ = os.Remove(path + "-journal")
	return os.Remove(path)
}
