package service

import (
	"context"
	"os"
	"sync"

	"signal_bot/internal/apperr"
	"signal_bot/internal/models"

	"github.com/pkg/errors"
)

// Source is read once per scan tick.
type Source interface {
	CurrentSignal(ctx context.Context) (models.ControlSignal, error)
}

// Store is a Source that can also be switched.
type Store interface {
	Source
	SetSignal(ctx context.Context, sig models.ControlSignal) error
}

// FileSource keeps the signal as literal text in a file so that it can be
// flipped from outside the process.
type FileSource struct {
	path string
	mu   sync.Mutex
}

// NewFileSource seeds the file with "start" when it does not exist yet.
func NewFileSource(path string) (*FileSource, error) {
	f := &FileSource{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := f.SetSignal(context.Background(), models.ControlStart); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, apperr.Fatal("control stat", errors.Wrap(err, path))
	}
	return f, nil
}

func (f *FileSource) Path() string { return f.path }

func (f *FileSource) CurrentSignal(_ context.Context) (models.ControlSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if err != nil {
		return models.ControlUnknown, apperr.Fatal("control read", errors.Wrap(err, f.path))
	}
	return models.ParseControlSignal(string(b)), nil
}

func (f *FileSource) SetSignal(_ context.Context, sig models.ControlSignal) error {
	if sig != models.ControlStart && sig != models.ControlStop {
		return errors.Errorf("invalid control signal %q", sig)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.WriteFile(f.path, []byte(sig), 0o644); err != nil {
		return apperr.Fatal("control write", errors.Wrap(err, f.path))
	}
	return nil
}

type MemorySource struct {
	mu  sync.Mutex
	sig models.ControlSignal
}

func NewMemorySource(sig models.ControlSignal) *MemorySource {
	return &MemorySource{sig: sig}
}

func (m *MemorySource) CurrentSignal(_ context.Context) (models.ControlSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sig, nil
}

func (m *MemorySource) SetSignal(_ context.Context, sig models.ControlSignal) error {
	m.mu.Lock()
	m.sig = sig
	m.mu.Unlock()
	return nil
}
