// Package kestrel implements a high-performance, archetype-based
// Entity-Component-System for Go.
//
// Features:
//   - Archetype-based columnar storage with a fixed budget of 256 component
//     types.
//   - Bitmask-indexed archetype lookup and a view/archetype graph that keeps
//     queries in sync as new archetypes appear.
//   - Unsafe pointer arithmetic on the hot paths (Create, Get, view
//     iteration) to avoid per-call allocation.
//   - Entity ids with no generation tag: freshness is the caller's
//     responsibility, not the engine's.
//
// The scheduling and async layers that drive systems concurrently live in
// the task, pool, scheduler, config and app subpackages; the event bus
// (EventBus) lives in this package, in eventbus.go.
package kestrel
