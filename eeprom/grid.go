package eeprom

import "fmt"

// GridBlock persists a height grid together with its dimensions. A record
// written with other dimensions is consumed value by value so the stream
// stays aligned for the blocks after it, and the live grid is left alone.
type GridBlock struct {
	name   string
	nx, ny uint8
	values []float32
	reset  func()
	stale  func(nx, ny uint8)
}

// Grid builds a block over values, which must hold nx*ny points
func Grid(name string, nx, ny uint8, values []float32) *GridBlock {
	if len(values) != int(nx)*int(ny) {
		panic(fmt.Sprintf("eeprom: grid %s: %d values for %dx%d", name, len(values), nx, ny))
	}
	return &GridBlock{name: name, nx: nx, ny: ny, values: values}
}

// WithReset sets the factory-default function
func (g *GridBlock) WithReset(fn func()) *GridBlock {
	g.reset = fn
	return g
}

// OnStale is called with the stored dimensions when they differ from the
// compiled grid
func (g *GridBlock) OnStale(fn func(nx, ny uint8)) *GridBlock {
	g.stale = fn
	return g
}

func (g *GridBlock) Name() string { return g.name }
func (g *GridBlock) Size() int    { return 2 + 4*len(g.values) }

func (g *GridBlock) Save(w *Writer) {
	w.Value(g.nx)
	w.Value(g.ny)
	w.Value(g.values)
}

func (g *GridBlock) Restore(r *Reader) {
	var nx, ny uint8
	r.Always(&nx)
	r.Always(&ny)

	if nx == g.nx && ny == g.ny {
		r.Value(g.values)
		return
	}

	var dummy float32
	for i := 0; i < int(nx)*int(ny); i++ {
		r.Value(&dummy)
	}
	if g.stale != nil && !r.Validating() {
		g.stale(nx, ny)
	}
}

func (g *GridBlock) Reset() {
	if g.reset != nil {
		g.reset()
	}
}
