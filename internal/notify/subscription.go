package notify

// SubscriptionSet is the set of spec ids one actuator listens to.
// Read-only from the engine's perspective.
type SubscriptionSet map[string]struct{}

// Contains reports whether the actuator subscribes to the spec.
func (s SubscriptionSet) Contains(specID string) bool {
	_, ok := s[specID]
	return ok
}

// ResolveSubscriptions expands direct spec ids and pool names into a
// concrete subscription set. Unknown spec ids are kept: the spec may
// appear in a later hot reload, and membership is re-checked per event.
func ResolveSubscriptions(specs map[string]*Spec, specIDs, pools []string) SubscriptionSet {
	set := make(SubscriptionSet, len(specIDs))
	for _, id := range specIDs {
		set[id] = struct{}{}
	}
	for _, pool := range pools {
		for id, spec := range specs {
			for _, p := range spec.Pools {
				if p == pool {
					set[id] = struct{}{}
					break
				}
			}
		}
	}
	return set
}
