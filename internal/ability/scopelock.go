package ability

// IncrementListLock defers End and Cancel on this instance until the
// matching DecrementListLock.
func (a *Instance) IncrementListLock() { a.scopeLock++ }

// DecrementListLock releases one lock level. At zero the queued calls run
// in FIFO order; calls queued while draining form a new pass.
func (a *Instance) DecrementListLock() {
	if a.scopeLock == 0 {
		a.usage("DecrementListLock without lock")
		return
	}
	a.scopeLock--
	for a.scopeLock == 0 && len(a.waiting) > 0 {
		pass := a.waiting
		a.waiting = nil
		for _, fn := range pass {
			fn()
		}
	}
}

func (a *Instance) ScopeLockCount() int { return a.scopeLock }

func (a *Instance) PendingCount() int { return len(a.waiting) }

// ScopeLock is a convenience for the common increment/defer-decrement pair.
//
//	defer a.ScopeLock()()
func (a *Instance) ScopeLock() (unlock func()) {
	a.IncrementListLock()
	return a.DecrementListLock
}
