package registry

import (
	"sync"

	"github.com/ekisa-team/salience/attribution"
	"github.com/ekisa-team/salience/config"
)

// Status describes the lifecycle state of a model instance.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Instance is one configured model made ready for attribution.
type Instance struct {
	ID     string
	Config *config.ModelConfig
	Path   string
	Model  *attribution.Model

	mu     sync.RWMutex
	status Status
}

// NewInstance creates an instance in the pending state.
func NewInstance(cfg *config.ModelConfig, id, path string) *Instance {
	return &Instance{
		ID:     id,
		Config: cfg,
		Path:   path,
		status: StatusPending,
	}
}

// SetStatus updates the lifecycle state.
func (i *Instance) SetStatus(s Status) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = s
}

// Status returns the lifecycle state.
func (i *Instance) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.status
}
