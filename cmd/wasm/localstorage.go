//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/AryanRai/AriesUI-sub001/internal/persist"
)

// localStorageStore implements persist.Store over the browser's
// window.localStorage. Browsers enforce their own quota; the configured
// limit rejects oversized payloads before the browser throws.
type localStorageStore struct {
	quota int
}

func newLocalStorageStore() *localStorageStore {
	return &localStorageStore{quota: persist.DefaultQuota}
}

func (s *localStorageStore) storage() js.Value {
	return js.Global().Get("localStorage")
}

func (s *localStorageStore) Load(_ context.Context, key string) ([]byte, error) {
	v := s.storage().Call("getItem", key)
	if v.IsNull() || v.IsUndefined() {
		return nil, persist.ErrKeyNotFound
	}
	return []byte(v.String()), nil
}

func (s *localStorageStore) Save(_ context.Context, key string, data []byte) (err error) {
	if s.quota > 0 && len(data) > s.quota {
		return &persist.QuotaError{Key: key, Size: len(data), Limit: s.quota}
	}

	// setItem throws QuotaExceededError when the browser's own limit hits;
	// syscall/js surfaces that as a panic.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("localStorage setItem %q: %v", key, r)
		}
	}()
	s.storage().Call("setItem", key, string(data))
	return nil
}

func (s *localStorageStore) Delete(_ context.Context, key string) error {
	s.storage().Call("removeItem", key)
	return nil
}
