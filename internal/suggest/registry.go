package suggest

import (
	"sync"

	"github.com/wolfman30/medisync/internal/doctors"
	"github.com/wolfman30/medisync/pkg/logging"
)

// Registry keeps one Workbench per signed-in doctor.
type Registry struct {
	generator Generator
	logger    *logging.Logger
	opts      []WorkbenchOption

	mu      sync.Mutex
	benches map[string]*Workbench
}

func NewRegistry(generator Generator, logger *logging.Logger, opts ...WorkbenchOption) *Registry {
	if generator == nil {
		panic("suggest: generator required")
	}
	return &Registry{generator: generator, logger: logger, opts: opts, benches: make(map[string]*Workbench)}
}

// For returns the doctor's workbench, creating it on first use.
func (r *Registry) For(doctor doctors.Doctor) *Workbench {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.benches[doctor.ID]; ok {
		return w
	}
	w := NewWorkbench(doctor, r.generator, r.logger, r.opts...)
	r.benches[doctor.ID] = w
	return w
}
