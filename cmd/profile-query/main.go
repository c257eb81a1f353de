// Profiling:
// go build ./cmd/profile-query
// go tool pprof -http=":8000" -nodefraction=0.001 ./profile-query cpu.prof
package main

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/kestrel-engine/kestrel"
)

type comp1 struct{ V, W int64 }
type comp2 struct{ V, W int64 }
type comp3 struct{ V, W int64 }
type comp4 struct{ V, W int64 }

func main() {
	f, _ := os.Create("cpu.prof")
	_ = pprof.StartCPUProfile(f)
	defer pprof.StopCPUProfile()

	rounds := 50
	iters := 10000
	entities := 100000

	run(rounds, iters, entities)

	memFile, _ := os.Create("mem.prof")
	defer memFile.Close()
	runtime.GC()
	_ = pprof.WriteHeapProfile(memFile)
}

func run(rounds, iters, numEntities int) {
	for r := 0; r < rounds; r++ {
		w := kestrel.NewWorld()
		for i := 0; i < numEntities; i++ {
			kestrel.Create4[comp1, comp2, comp3, comp4](w, comp1{}, comp2{}, comp3{}, comp4{})
		}
		view := kestrel.NewView4[comp1, comp2, comp3, comp4](w)

		for it := 0; it < iters; it++ {
			view.Reset()
			for view.Next() {
				c1, c2, _, _ := view.Get()
				c1.V += c2.V
				c1.W += c2.W
			}
		}
	}
}
