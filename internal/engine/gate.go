package engine

// Gate is the counting semaphore bounding simultaneous purchase executions.
// Acquiring a slot is the only way an intent moves Queued -> Processing.
type Gate struct {
	slots chan struct{}
}

// NewGate returns a gate with the given capacity; anything below 1 is
// clamped to 1.
func NewGate(size int) *Gate {
	if size < 1 {
		size = 1
	}
	return &Gate{slots: make(chan struct{}, size)}
}

// TryAcquire claims a slot without blocking. A false return is not an error:
// the intent simply stays queued until a slot frees.
func (g *Gate) TryAcquire() bool {
	select {
	case g.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot. Callers must release exactly once per successful
// acquire, via defer, so a fault in the executor cannot leak the slot.
func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
		// Release without acquire is a programming error; dropping it is
		// safer than blocking the worker.
	}
}

// InFlight returns the number of currently held slots.
func (g *Gate) InFlight() int {
	return len(g.slots)
}

// Capacity returns the gate size.
func (g *Gate) Capacity() int {
	return cap(g.slots)
}
