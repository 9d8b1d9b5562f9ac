package kv

import (
	"context"
	"errors"
	"time"
)

// Recorder receives one observation per store operation.
type Recorder interface {
	RecordStoreOp(ctx context.Context, backend, op string, duration time.Duration, err error)
}

// Instrumented reports the latency and failures of the wrapped store.
// A missing key is not a failure.
type Instrumented struct {
	Store
	backend  string
	recorder Recorder
}

func Instrument(store Store, backend string, recorder Recorder) *Instrumented {
	return &Instrumented{Store: store, backend: backend, recorder: recorder}
}

func (s *Instrumented) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	v, err := s.Store.Get(ctx, key)
	recorded := err
	if errors.Is(err, ErrNotFound) {
		recorded = nil
	}
	s.recorder.RecordStoreOp(ctx, s.backend, "get", time.Since(start), recorded)
	return v, err
}

func (s *Instrumented) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.Store.Set(ctx, key, value)
	s.recorder.RecordStoreOp(ctx, s.backend, "set", time.Since(start), err)
	return err
}

func (s *Instrumented) Del(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := s.Store.Del(ctx, keys...)
	s.recorder.RecordStoreOp(ctx, s.backend, "del", time.Since(start), err)
	return err
}
