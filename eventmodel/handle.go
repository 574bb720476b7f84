package eventmodel

import (
	"context"
	"errors"
	"sync"

	"github.com/RyanBlaney/sonido-vibe/logging"
)

// Loader builds a Model, typically by fetching its vocabulary or weights
type Loader func(ctx context.Context) (Model, error)

// Handle loads its Model once, on first use, and shares it afterwards.
// Concurrent first callers wait for the single in-flight load, each for as
// long as its own context allows. A failed load is not remembered, so the
// next caller tries again.
type Handle struct {
	mu      sync.Mutex
	loader  Loader
	model   Model
	loading chan struct{} // closed when the in-flight load ends
	logger  logging.Logger
}

// NewHandle creates a lazily loading handle
func NewHandle(loader Loader) *Handle {
	return &Handle{
		loader: loader,
		logger: logging.WithFields(logging.Fields{
			"component": "event_model_handle",
		}),
	}
}

// NewStaticHandle wraps an already constructed model
func NewStaticHandle(model Model) *Handle {
	h := NewHandle(nil)
	h.model = model
	return h
}

// Get returns the shared model, loading it if needed
func (h *Handle) Get(ctx context.Context) (Model, error) {
	for {
		h.mu.Lock()
		if h.model != nil {
			model := h.model
			h.mu.Unlock()
			return model, nil
		}
		if h.loader == nil {
			h.mu.Unlock()
			return nil, errors.New("event model handle has no loader")
		}
		if h.loading == nil {
			done := make(chan struct{})
			h.loading = done
			h.mu.Unlock()
			return h.load(ctx, done)
		}
		wait := h.loading
		h.mu.Unlock()

		select {
		case <-wait:
			// loaded, or failed and the next pass retries
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (h *Handle) load(ctx context.Context, done chan struct{}) (model Model, err error) {
	defer func() {
		h.mu.Lock()
		if err == nil {
			h.model = model
		}
		h.loading = nil
		h.mu.Unlock()
		close(done)
	}()

	h.logger.Info("Loading event model")
	model, err = h.loader(ctx)
	if err != nil {
		h.logger.Error(err, "Event model load failed")
		return nil, err
	}
	h.logger.Info("Event model loaded")
	return model, nil
}

// Loaded reports whether the model is ready without triggering a load
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.model != nil
}
