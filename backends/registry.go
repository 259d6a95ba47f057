package backends

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/visionkit/adaptiveface/faces"
)

// Registry holds the closed set of backends the tier policy selects among,
// keyed by backend identifier. Registration happens at startup; lookups
// afterwards are read-only and safe for concurrent detection calls.
type Registry struct {
	backends map[string]Backend
	order    []string
	log      *zap.Logger
}

// NewRegistry creates an empty backend registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		backends: make(map[string]Backend),
		log:      log,
	}
}

// Register adds a backend under its identifier. Registering the same
// identifier twice replaces the earlier backend.
func (r *Registry) Register(b Backend) {
	if _, exists := r.backends[b.ID()]; !exists {
		r.order = append(r.order, b.ID())
	}
	r.backends[b.ID()] = b
}

// Get returns the backend registered under id.
func (r *Registry) Get(id string) (Backend, bool) {
	b, ok := r.backends[id]
	return b, ok
}

// IDs returns the registered identifiers in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Detect invokes the named backend and absorbs every failure mode into an
// empty candidate list: unknown backend, unavailable model, inference
// error, or panic. Failures are logged and never propagate past this
// boundary, so a backend hiccup narrows the result instead of aborting
// the detection call.
func (r *Registry) Detect(id string, img image.Image, confThreshold float32) (cands []faces.Candidate) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("backend panicked during inference",
				zap.String("backend", id),
				zap.Any("panic", rec))
			cands = nil
		}
	}()

	b, ok := r.backends[id]
	if !ok {
		r.log.Warn("unknown backend requested", zap.String("backend", id))
		return nil
	}
	if !b.Available() {
		r.log.Warn("backend unavailable, skipping", zap.String("backend", id))
		return nil
	}

	cands, err := b.Detect(img, confThreshold)
	if err != nil {
		r.log.Warn("backend inference failed",
			zap.String("backend", id),
			zap.Error(err))
		return nil
	}
	return cands
}

// Close releases every registered backend, returning the first error
// encountered after attempting all of them.
func (r *Registry) Close() error {
	var firstErr error
	for _, id := range r.order {
		if err := r.backends[id].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing backend %s: %w", id, err)
		}
	}
	return firstErr
}
