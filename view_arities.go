package kestrel

import "unsafe"

// View1 iterates every entity that carries component T1. Views for more
// than one required component follow the identical pattern below up to
// View4; see DESIGN.md for why this engine bounds the arity instead of
// generating an open-ended family.
type View1[T1 any] struct {
	view        *View
	archIdx     int
	row         int
	archLen     int
	base1       unsafe.Pointer
	stride1     uintptr
	id1         ComponentID
	curEntities []Entity
}

// NewView1 returns a view over every entity that has component T1 but none
// of the optionally supplied excluded component ids.
func NewView1[T1 any](w *World, exclude ...ComponentID) *View1[T1] {
	id1 := GetID[T1]()
	var excl bitmask256
	for _, id := range exclude {
		excl.set(id)
	}
	var inc bitmask256
	inc.set(id1)
	v := &View1[T1]{view: newView(w, inc, excl), id1: id1, archIdx: -1}
	v.stride1 = vtableFor(id1).size
	return v
}

// Reset rewinds iteration to the start, picking up any archetypes created
// since the view was last iterated.
func (v *View1[T1]) Reset() {
	v.archIdx = -1
	v.archLen = 0
	v.row = 0
}

// Next advances to the next matching entity, returning false once
// exhausted.
func (v *View1[T1]) Next() bool {
	v.row++
	if v.row < v.archLen {
		return true
	}
	for {
		v.archIdx++
		if v.archIdx >= len(v.view.archetypes) {
			return false
		}
		a := v.view.archetypes[v.archIdx]
		if a.len() == 0 {
			continue
		}
		v.base1 = a.columnBase(v.id1)
		v.curEntities = a.entities
		v.archLen = a.len()
		v.row = 0
		return true
	}
}

// Entity returns the entity at the current iteration position.
func (v *View1[T1]) Entity() Entity {
	return v.curEntities[v.row]
}

// Get returns a pointer to the current entity's T1 component.
func (v *View1[T1]) Get() *T1 {
	return (*T1)(unsafe.Add(v.base1, uintptr(v.row)*v.stride1))
}

// View2 iterates every entity that carries both T1 and T2.
type View2[T1, T2 any] struct {
	view                 *View
	archIdx, row, archLn int
	base1, base2         unsafe.Pointer
	stride1, stride2     uintptr
	id1, id2             ComponentID
	curEntities          []Entity
}

func NewView2[T1, T2 any](w *World, exclude ...ComponentID) *View2[T1, T2] {
	id1, id2 := GetID[T1](), GetID[T2]()
	var excl bitmask256
	for _, id := range exclude {
		excl.set(id)
	}
	var inc bitmask256
	inc.set(id1)
	inc.set(id2)
	v := &View2[T1, T2]{view: newView(w, inc, excl), id1: id1, id2: id2, archIdx: -1}
	v.stride1, v.stride2 = vtableFor(id1).size, vtableFor(id2).size
	return v
}

func (v *View2[T1, T2]) Reset() {
	v.archIdx, v.archLn, v.row = -1, 0, 0
}

func (v *View2[T1, T2]) Next() bool {
	v.row++
	if v.row < v.archLn {
		return true
	}
	for {
		v.archIdx++
		if v.archIdx >= len(v.view.archetypes) {
			return false
		}
		a := v.view.archetypes[v.archIdx]
		if a.len() == 0 {
			continue
		}
		v.base1, v.base2 = a.columnBase(v.id1), a.columnBase(v.id2)
		v.curEntities = a.entities
		v.archLn = a.len()
		v.row = 0
		return true
	}
}

func (v *View2[T1, T2]) Entity() Entity { return v.curEntities[v.row] }

func (v *View2[T1, T2]) Get() (*T1, *T2) {
	return (*T1)(unsafe.Add(v.base1, uintptr(v.row)*v.stride1)),
		(*T2)(unsafe.Add(v.base2, uintptr(v.row)*v.stride2))
}

// View3 iterates every entity that carries T1, T2, and T3.
type View3[T1, T2, T3 any] struct {
	view                         *View
	archIdx, row, archLn         int
	base1, base2, base3         unsafe.Pointer
	stride1, stride2, stride3   uintptr
	id1, id2, id3               ComponentID
	curEntities                 []Entity
}

func NewView3[T1, T2, T3 any](w *World, exclude ...ComponentID) *View3[T1, T2, T3] {
	id1, id2, id3 := GetID[T1](), GetID[T2](), GetID[T3]()
	var excl bitmask256
	for _, id := range exclude {
		excl.set(id)
	}
	var inc bitmask256
	inc.set(id1)
	inc.set(id2)
	inc.set(id3)
	v := &View3[T1, T2, T3]{view: newView(w, inc, excl), id1: id1, id2: id2, id3: id3, archIdx: -1}
	v.stride1, v.stride2, v.stride3 = vtableFor(id1).size, vtableFor(id2).size, vtableFor(id3).size
	return v
}

func (v *View3[T1, T2, T3]) Reset() {
	v.archIdx, v.archLn, v.row = -1, 0, 0
}

func (v *View3[T1, T2, T3]) Next() bool {
	v.row++
	if v.row < v.archLn {
		return true
	}
	for {
		v.archIdx++
		if v.archIdx >= len(v.view.archetypes) {
			return false
		}
		a := v.view.archetypes[v.archIdx]
		if a.len() == 0 {
			continue
		}
		v.base1, v.base2, v.base3 = a.columnBase(v.id1), a.columnBase(v.id2), a.columnBase(v.id3)
		v.curEntities = a.entities
		v.archLn = a.len()
		v.row = 0
		return true
	}
}

func (v *View3[T1, T2, T3]) Entity() Entity { return v.curEntities[v.row] }

func (v *View3[T1, T2, T3]) Get() (*T1, *T2, *T3) {
	return (*T1)(unsafe.Add(v.base1, uintptr(v.row)*v.stride1)),
		(*T2)(unsafe.Add(v.base2, uintptr(v.row)*v.stride2)),
		(*T3)(unsafe.Add(v.base3, uintptr(v.row)*v.stride3))
}

// View4 iterates every entity that carries T1, T2, T3, and T4.
type View4[T1, T2, T3, T4 any] struct {
	view                                 *View
	archIdx, row, archLn                 int
	base1, base2, base3, base4          unsafe.Pointer
	stride1, stride2, stride3, stride4  uintptr
	id1, id2, id3, id4                  ComponentID
	curEntities                          []Entity
}

func NewView4[T1, T2, T3, T4 any](w *World, exclude ...ComponentID) *View4[T1, T2, T3, T4] {
	id1, id2, id3, id4 := GetID[T1](), GetID[T2](), GetID[T3](), GetID[T4]()
	var excl bitmask256
	for _, id := range exclude {
		excl.set(id)
	}
	var inc bitmask256
	inc.set(id1)
	inc.set(id2)
	inc.set(id3)
	inc.set(id4)
	v := &View4[T1, T2, T3, T4]{view: newView(w, inc, excl), id1: id1, id2: id2, id3: id3, id4: id4, archIdx: -1}
	v.stride1, v.stride2, v.stride3, v.stride4 = vtableFor(id1).size, vtableFor(id2).size, vtableFor(id3).size, vtableFor(id4).size
	return v
}

func (v *View4[T1, T2, T3, T4]) Reset() {
	v.archIdx, v.archLn, v.row = -1, 0, 0
}

func (v *View4[T1, T2, T3, T4]) Next() bool {
	v.row++
	if v.row < v.archLn {
		return true
	}
	for {
		v.archIdx++
		if v.archIdx >= len(v.view.archetypes) {
			return false
		}
		a := v.view.archetypes[v.archIdx]
		if a.len() == 0 {
			continue
		}
		v.base1, v.base2, v.base3, v.base4 = a.columnBase(v.id1), a.columnBase(v.id2), a.columnBase(v.id3), a.columnBase(v.id4)
		v.curEntities = a.entities
		v.archLn = a.len()
		v.row = 0
		return true
	}
}

func (v *View4[T1, T2, T3, T4]) Entity() Entity { return v.curEntities[v.row] }

func (v *View4[T1, T2, T3, T4]) Get() (*T1, *T2, *T3, *T4) {
	return (*T1)(unsafe.Add(v.base1, uintptr(v.row)*v.stride1)),
		(*T2)(unsafe.Add(v.base2, uintptr(v.row)*v.stride2)),
		(*T3)(unsafe.Add(v.base3, uintptr(v.row)*v.stride3)),
		(*T4)(unsafe.Add(v.base4, uintptr(v.row)*v.stride4))
}
