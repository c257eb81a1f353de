// Profiling:
// go build ./cmd/profile-entities
// go tool pprof -http=":8000" -nodefraction=0.001 ./profile-entities mem.pprof
package main

import (
	"github.com/pkg/profile"

	"github.com/kestrel-engine/kestrel"
)

type position struct {
	X, Y int64
}

type velocity struct {
	X, Y int64
}

func main() {
	rounds := 50
	iters := 10000
	entities := 1000

	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	for r := 0; r < rounds; r++ {
		w := kestrel.NewWorld()
		view := kestrel.NewView2[position, velocity](w)

		for it := 0; it < iters; it++ {
			for i := 0; i < numEntities; i++ {
				kestrel.Create2[position, velocity](w, position{X: int64(i)}, velocity{X: 1, Y: 1})
			}

			var toDestroy []kestrel.Entity
			view.Reset()
			for view.Next() {
				toDestroy = append(toDestroy, view.Entity())
				pos, vel := view.Get()
				pos.X += vel.X
				pos.Y += vel.Y
			}
			for _, e := range toDestroy {
				w.Destroy(e)
			}
		}
	}
}
