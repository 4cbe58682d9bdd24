package ability

// Task is a long-running sub-operation owned by one instance.
type Task interface {
	InstanceName() string
	// OwnerEnded is called once when the owning instance ends.
	OwnerEnded()
	EndTask()
	ExternalCancel()
	ExternalConfirm(endTask bool)
	IsWaitingOnRemotePlayerData() bool
	IsWaitingOnAvatar() bool
}

func (a *Instance) RegisterTask(t Task) { a.tasks = append(a.tasks, t) }

// DeregisterTask removes t by identity.
func (a *Instance) DeregisterTask(t Task) bool {
	for i, x := range a.tasks {
		if x == t {
			a.tasks = append(a.tasks[:i], a.tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (a *Instance) TaskCount() int { return len(a.tasks) }

func (a *Instance) Tasks() []Task { return append([]Task(nil), a.tasks...) }

// notifyTasksOwnerEnded walks backwards and re-checks the length on every
// step because tasks deregister themselves while being notified.
func (a *Instance) notifyTasksOwnerEnded() {
	for i := len(a.tasks) - 1; i >= 0 && len(a.tasks) > 0; i-- {
		if i >= len(a.tasks) {
			i = len(a.tasks)
			continue
		}
		if t := a.tasks[i]; t != nil {
			t.OwnerEnded()
		}
	}
	a.tasks = a.tasks[:0]
}

// EndTaskByInstanceName ends every task named name on the next tick.
func (a *Instance) EndTaskByInstanceName(name string) {
	a.endNames = addUniqueName(a.endNames, name)
	a.ScheduleNextTick(a.EndOrCancelTasksByInstanceName)
}

// CancelTaskByInstanceName cancels every task named name on the next tick.
func (a *Instance) CancelTaskByInstanceName(name string) {
	a.cancelNames = addUniqueName(a.cancelNames, name)
	a.ScheduleNextTick(a.EndOrCancelTasksByInstanceName)
}

// EndOrCancelTasksByInstanceName runs the queued by-name requests. Matches
// are collected first so tasks that end other tasks do not disturb the walk.
// Names queued by a callback during the pass wait for the next tick.
func (a *Instance) EndOrCancelTasksByInstanceName() {
	endNames := a.endNames
	a.endNames = nil
	for _, name := range endNames {
		match := a.tasksNamed(name)
		for i := len(match) - 1; i >= 0; i-- {
			if a.hasTask(match[i]) {
				match[i].EndTask()
			}
		}
	}

	cancelNames := a.cancelNames
	a.cancelNames = nil
	for _, name := range cancelNames {
		match := a.tasksNamed(name)
		for i := len(match) - 1; i >= 0; i-- {
			if a.hasTask(match[i]) {
				match[i].ExternalCancel()
			}
		}
	}
}

// ConfirmTaskByInstanceName confirms matching tasks immediately.
func (a *Instance) ConfirmTaskByInstanceName(name string, endTask bool) {
	match := a.tasksNamed(name)
	for i := len(match) - 1; i >= 0; i-- {
		match[i].ExternalConfirm(endTask)
	}
}

func (a *Instance) tasksNamed(name string) []Task {
	if name == "" {
		return nil
	}
	var out []Task
	for _, t := range a.tasks {
		if t != nil && t.InstanceName() == name {
			out = append(out, t)
		}
	}
	return out
}

func (a *Instance) hasTask(t Task) bool {
	for _, x := range a.tasks {
		if x == t {
			return true
		}
	}
	return false
}

func addUniqueName(list []string, name string) []string {
	for _, n := range list {
		if n == name {
			return list
		}
	}
	return append(list, name)
}

// ScheduleNextTick runs fn on the owner's next tick unless this activation
// ends first.
func (a *Instance) ScheduleNextTick(fn func()) bool {
	owner, ok := a.Owner()
	if !ok {
		a.usage("ScheduleNextTick without component")
		return false
	}
	gen := a.latentGen
	owner.ScheduleNextTick(func() {
		if a.latentGen != gen {
			return
		}
		fn()
	})
	return true
}

func (a *Instance) clearLatent() {
	a.latentGen++
	a.endNames = nil
	a.cancelNames = nil
}
