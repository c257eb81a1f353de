package kestrel

// View is a registered query: the sorted set of components it requires
// (includeMask), an optional set it must exclude, and the live list of
// archetypes that currently satisfy both. The archetype whose component set
// equals includeMask exactly, if any, is kept at index 0.
type View struct {
	includeMask bitmask256
	excludeMask bitmask256
	archetypes  []*archetype
}

func newView(w *World, include, exclude bitmask256) *View {
	v := &View{includeMask: include, excludeMask: exclude}
	w.registerView(v)
	return v
}

// Len returns the number of matching archetypes currently tracked. Exposed
// mainly for tests asserting the exact-match-first invariant.
func (v *View) Len() int {
	return len(v.archetypes)
}
