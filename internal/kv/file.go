package kv

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var ErrSealedOpen = errors.New("cannot open sealed credential file")

var sealedMagic = []byte("ACS1")

const (
	saltSize  = 16
	nonceSize = 24
)

// File keeps all entries in one JSON document on disk. When a passphrase is
// given the document is sealed with NaCl secretbox under an scrypt key.
type File struct {
	mu     sync.Mutex
	path   string
	key    *[32]byte
	salt   []byte
	values map[string]string
}

var _ Store = (*File)(nil)

func OpenFile(path, passphrase string) (*File, error) {
	f := &File{path: path, values: make(map[string]string)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if passphrase != "" {
			f.salt = make([]byte, saltSize)
			if _, err := io.ReadFull(rand.Reader, f.salt); err != nil {
				return nil, fmt.Errorf("failed to generate salt: %w", err)
			}
			if f.key, err = deriveKey(passphrase, f.salt); err != nil {
				return nil, err
			}
		}
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	if bytes.HasPrefix(raw, sealedMagic) {
		if passphrase == "" {
			return nil, fmt.Errorf("%w: passphrase required", ErrSealedOpen)
		}
		if raw, err = f.unseal(raw, passphrase); err != nil {
			return nil, err
		}
	} else if passphrase != "" {
		return nil, fmt.Errorf("%w: file is not sealed", ErrSealedOpen)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f.values); err != nil {
			return nil, fmt.Errorf("failed to decode credential file: %w", err)
		}
	}
	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	f.values[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *File) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := false
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.flush()
}

func (f *File) Close() error { return nil }

// flush must be called with f.mu held.
func (f *File) flush() error {
	data, err := json.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("failed to encode credential file: %w", err)
	}
	if f.key != nil {
		if data, err = f.seal(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *File) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := make([]byte, 0, len(sealedMagic)+saltSize+nonceSize+len(plain)+secretbox.Overhead)
	out = append(out, sealedMagic...)
	out = append(out, f.salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, f.key), nil
}

func (f *File) unseal(raw []byte, passphrase string) ([]byte, error) {
	raw = raw[len(sealedMagic):]
	if len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: truncated file", ErrSealedOpen)
	}
	f.salt = append([]byte(nil), raw[:saltSize]...)
	var nonce [nonceSize]byte
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])

	key, err := deriveKey(passphrase, f.salt)
	if err != nil {
		return nil, err
	}
	plain, ok := secretbox.Open(nil, raw[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("%w: wrong passphrase or corrupted file", ErrSealedOpen)
	}
	f.key = key
	return plain, nil
}

func deriveKey(passphrase string, salt []byte) (*[32]byte, error) {
	derived, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [32]byte
	copy(key[:], derived)
	return &key, nil
}
