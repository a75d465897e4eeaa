package intake

import "sync"

// Desks keeps one Desk per front-desk operator.
type Desks struct {
	reconciler *Reconciler

	mu    sync.Mutex
	desks map[string]*Desk
}

func NewDesks(reconciler *Reconciler) *Desks {
	if reconciler == nil {
		panic("intake: reconciler required")
	}
	return &Desks{reconciler: reconciler, desks: make(map[string]*Desk)}
}

// Get returns the desk for id, creating an empty one on first use.
func (d *Desks) Get(id string) *Desk {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desk, ok := d.desks[id]; ok {
		return desk
	}
	desk := NewDesk(id, d.reconciler)
	d.desks[id] = desk
	return desk
}
