package tags

import "sort"

// CountContainer keeps a reference count per explicit tag, plus a
// hierarchical count where every explicit tag also counts toward each of
// its parents. A tag is present while its explicit count is above zero.
type CountContainer struct {
	counts   map[Tag]int
	full     map[Tag]int
	explicit Container

	// OnChange, if set, is called when a tag's hierarchical count goes
	// 0 -> n or n -> 0. It fires for the tag first, then each parent.
	OnChange func(t Tag, present bool)
}

func NewCountContainer() *CountContainer {
	return &CountContainer{counts: map[Tag]int{}, full: map[Tag]int{}}
}

func (cc *CountContainer) Count(t Tag) int {
	if cc == nil {
		return 0
	}
	return cc.counts[t]
}

// FullCount counts t and every descendant of t.
func (cc *CountContainer) FullCount(t Tag) int {
	if cc == nil {
		return 0
	}
	return cc.full[t]
}

// Update adds delta to every tag of c. Counts never go below zero.
func (cc *CountContainer) Update(c Container, delta int) {
	for _, t := range c.tags {
		cc.UpdateTag(t, delta)
	}
}

func (cc *CountContainer) UpdateTag(t Tag, delta int) {
	if !t.IsValid() || delta == 0 {
		return
	}
	if cc.counts == nil {
		cc.counts = map[Tag]int{}
	}
	if cc.full == nil {
		cc.full = map[Tag]int{}
	}
	old := cc.counts[t]
	n := old + delta
	if n < 0 {
		n = 0
	}
	applied := n - old
	if applied == 0 {
		return
	}
	if n == 0 {
		delete(cc.counts, t)
		cc.explicit.Remove(t)
	} else {
		cc.counts[t] = n
		if old == 0 {
			cc.explicit.Add(t)
		}
	}

	var changed []Tag
	for p := t; p.IsValid(); p = p.Parent() {
		was := cc.full[p]
		now := was + applied
		if now <= 0 {
			delete(cc.full, p)
			now = 0
		} else {
			cc.full[p] = now
		}
		if (was == 0) != (now == 0) {
			changed = append(changed, p)
		}
	}
	if cc.OnChange == nil {
		return
	}
	for _, p := range changed {
		cc.OnChange(p, cc.full[p] > 0)
	}
}

// Explicit returns the tags with a positive count, in first-seen order.
func (cc *CountContainer) Explicit() Container {
	if cc == nil {
		return Container{}
	}
	return cc.explicit
}

func (cc *CountContainer) HasTag(t Tag) bool       { return cc.Explicit().HasTag(t) }
func (cc *CountContainer) HasAny(c Container) bool { return cc.Explicit().HasAny(c) }
func (cc *CountContainer) HasAll(c Container) bool { return cc.Explicit().HasAll(c) }

// Snapshot returns a copy of the counts, for persistence.
func (cc *CountContainer) Snapshot() map[string]int {
	out := make(map[string]int, len(cc.counts))
	for t, n := range cc.counts {
		out[string(t)] = n
	}
	return out
}

// Restore replaces the counts. Change callbacks are not fired.
func (cc *CountContainer) Restore(m map[string]int) {
	cc.counts = map[Tag]int{}
	cc.full = map[Tag]int{}
	cc.explicit = Container{}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n := m[k]
		if n <= 0 || k == "" {
			continue
		}
		t := Tag(k)
		cc.counts[t] = n
		cc.explicit.Add(t)
		for p := t; p.IsValid(); p = p.Parent() {
			cc.full[p] += n
		}
	}
}
