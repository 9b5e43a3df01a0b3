package storage

import (
	"context"
	"time"
)

// Observer receives one observation per backend call.
type Observer interface {
	ObserveStorage(backend, op, status string, seconds float64)
}

type instrumented struct {
	Backend
	name     string
	observer Observer
}

// Instrument wraps backend so every Load and Save is reported to observer
// under the given backend name.
func Instrument(backend Backend, name string, observer Observer) Backend {
	if observer == nil {
		return backend
	}
	return &instrumented{Backend: backend, name: name, observer: observer}
}

func (i *instrumented) Load(ctx context.Context, collection string) ([]byte, error) {
	start := time.Now()
	data, err := i.Backend.Load(ctx, collection)
	i.observer.ObserveStorage(i.name, "load", status(err), time.Since(start).Seconds())
	return data, err
}

func (i *instrumented) Save(ctx context.Context, collection string, data []byte) error {
	start := time.Now()
	err := i.Backend.Save(ctx, collection, data)
	i.observer.ObserveStorage(i.name, "save", status(err), time.Since(start).Seconds())
	return err
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
