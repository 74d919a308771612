package ocr

import (
	"context"

	"github.com/pagelens/pagelens/pkg/logging"
)

// Registry holds the engines that passed detection, in probe order. The
// first entry is the default engine. Detection runs once at construction
// and the set is not re-evaluated afterwards.
type Registry struct {
	engines   []Engine
	available []EngineID
	byID      map[EngineID]Engine
}

// NewRegistry probes each candidate in order and records the usable set.
// A failed probe drops the candidate; the failure is logged and otherwise
// swallowed so one misconfigured backend never blocks startup.
func NewRegistry(ctx context.Context, candidates ...Engine) *Registry {
	logger := logging.GetLogger("ocr-registry")

	r := &Registry{byID: make(map[EngineID]Engine)}
	for _, eng := range candidates {
		if err := eng.Probe(ctx); err != nil {
			logger.Debug().
				Err(err).
				Str("engine", string(eng.ID())).
				Msg("Engine unavailable, skipping")
			continue
		}
		r.engines = append(r.engines, eng)
		r.available = append(r.available, eng.ID())
		r.byID[eng.ID()] = eng
		logger.Info().Str("engine", string(eng.ID())).Msg("Engine registered")
	}
	return r
}

// DefaultCandidates returns the standard engine set in detection order: the
// local tesseract binary first, then the neural engine, then the platform
// recognizer.
func DefaultCandidates(language, ollamaModel, ollamaServerURL string) []Engine {
	return []Engine{
		NewTesseractEngine(language),
		NewOllamaEngine(ollamaModel, ollamaServerURL),
		NewPlatformEngine(),
	}
}

// Available returns the usable engine identifiers in detection order.
func (r *Registry) Available() []EngineID {
	out := make([]EngineID, len(r.available))
	copy(out, r.available)
	return out
}

// Default returns the engine callers get when they have not chosen one.
// ok is false when detection produced no usable engine at all.
func (r *Registry) Default() (EngineID, bool) {
	if len(r.available) == 0 {
		return "", false
	}
	return r.available[0], true
}

// Engine resolves an identifier to its engine.
func (r *Registry) Engine(id EngineID) (Engine, bool) {
	eng, ok := r.byID[id]
	return eng, ok
}

// Has reports whether the identifier names a usable engine.
func (r *Registry) Has(id EngineID) bool {
	_, ok := r.byID[id]
	return ok
}

// Info returns the human-readable description for an engine, or the empty
// string for identifiers outside the usable set.
func (r *Registry) Info(id EngineID) string {
	if eng, ok := r.byID[id]; ok {
		return eng.Info()
	}
	return ""
}
