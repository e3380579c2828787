package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileStore implements [Store] as a TOML document rewritten atomically (temp file + rename) on every change.
//
// The file is re-read on each call so a second process (e.g. `auth callback`) observes the first one's writes.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type credentialsFile struct {
	Credentials map[string]string `toml:"credentials"`
}

// NewFileStore returns a store backed by the file at path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(key Key) (string, bool, error) {
	if err := checkKeys(key); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[string(key)]
	return v, ok, nil
}

func (s *FileStore) Set(key Key, value string) error {
	return s.SetMany(map[Key]string{key: value})
}

func (s *FileStore) Remove(key Key) error {
	return s.RemoveMany(key)
}

func (s *FileStore) SetMany(values map[Key]string) error {
	for k := range values {
		if err := checkKeys(k); err != nil {
			return err
		}
	}
	return s.update(func(current map[string]string) {
		for k, v := range values {
			current[string(k)] = v
		}
	})
}

func (s *FileStore) RemoveMany(keys ...Key) error {
	if err := checkKeys(keys...); err != nil {
		return err
	}
	return s.update(func(current map[string]string) {
		for _, k := range keys {
			delete(current, string(k))
		}
	})
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) update(fn func(map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	fn(values)
	return s.write(values)
}

func (s *FileStore) read() (map[string]string, error) {
	var doc credentialsFile
	if _, err := toml.DecodeFile(s.path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, unavailable("read", err)
	}
	if doc.Credentials == nil {
		doc.Credentials = map[string]string{}
	}
	return doc.Credentials, nil
}

func (s *FileStore) write(values map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return unavailable("write", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.toml")
	if err != nil {
		return unavailable("write", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return unavailable("write", err)
	}
	if err := toml.NewEncoder(tmp).Encode(credentialsFile{Credentials: values}); err != nil {
		tmp.Close()
		return unavailable("write", fmt.Errorf("encode: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return unavailable("write", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return unavailable("write", err)
	}
	return nil
}
