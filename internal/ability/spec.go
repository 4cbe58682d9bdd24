package ability

import "github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"

// Spec records that an owner has been granted an ability at a level.
type Spec struct {
	Handle      Handle
	Def         *Definition
	Level       int
	InputID     int
	SourceID    string
	DynamicTags tags.Container
	SetByCaller map[tags.Tag]float64

	// ActiveCount saturates at 255.
	ActiveCount uint8

	InputPressed          bool
	PendingRemove         bool
	RemoveAfterActivation bool

	// Template is the shared, never-instantiated representation. For
	// NonInstanced abilities it is also what runs.
	Template *Instance
	// Instances holds the primary instance (per-actor) or the live
	// per-execution instances.
	Instances []*Instance
}

func (s *Spec) IsActive() bool { return s != nil && s.ActiveCount > 0 }

// PrimaryInstance returns the per-actor instance, or nil.
func (s *Spec) PrimaryInstance() *Instance {
	if s == nil || s.Def == nil || s.Def.Instancing != InstancedPerActor || len(s.Instances) == 0 {
		return nil
	}
	return s.Instances[0]
}

// AbilityInstances returns a copy of the instance list.
func (s *Spec) AbilityInstances() []*Instance {
	if s == nil {
		return nil
	}
	return append([]*Instance(nil), s.Instances...)
}

func (s *Spec) RemoveInstance(a *Instance) bool {
	for i, x := range s.Instances {
		if x == a {
			s.Instances = append(s.Instances[:i], s.Instances[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Spec) SetByCallerMagnitude(t tags.Tag) (float64, bool) {
	if s == nil || s.SetByCaller == nil {
		return 0, false
	}
	v, ok := s.SetByCaller[t]
	return v, ok
}
