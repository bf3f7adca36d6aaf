package eeprom

import (
	"encoding/binary"
	"fmt"
)

// Block is one subsystem's fixed-size slice of the settings record.
// Save and Restore must stream exactly Size bytes.
type Block interface {
	Name() string
	Size() int
	Save(w *Writer)
	Restore(r *Reader)
}

// Defaulter is implemented by blocks that can load factory defaults
type Defaulter interface {
	Reset()
}

// PostLoader is implemented by blocks with derived state to recompute after
// a load or reset. PostLoad must be safe to call repeatedly.
type PostLoader interface {
	PostLoad()
}

// Registry is the ordered block list. The order is the record layout: any
// change to it needs a new version tag.
type Registry struct {
	blocks []Block
	hooks  []func()
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends blocks to the layout
func (r *Registry) Add(blocks ...Block) {
	r.blocks = append(r.blocks, blocks...)
}

// AddIf appends b only when the feature is present, so absent features
// contribute no bytes
func (r *Registry) AddIf(present bool, b Block) {
	if present {
		r.blocks = append(r.blocks, b)
	}
}

// OnPostLoad registers a hook run after every block's PostLoad
func (r *Registry) OnPostLoad(fn func()) {
	r.hooks = append(r.hooks, fn)
}

// Size returns the summed block sizes
func (r *Registry) Size() int {
	size := 0
	for _, b := range r.blocks {
		size += b.Size()
	}
	return size
}

// Blocks returns the layout in order
func (r *Registry) Blocks() []Block {
	return r.blocks
}

func (r *Registry) save(w *Writer) {
	for _, b := range r.blocks {
		b.Save(w)
	}
}

func (r *Registry) restore(rd *Reader) {
	for _, b := range r.blocks {
		b.Restore(rd)
	}
}

func (r *Registry) reset() {
	for _, b := range r.blocks {
		if d, ok := b.(Defaulter); ok {
			d.Reset()
		}
	}
}

func (r *Registry) postProcess() {
	for _, b := range r.blocks {
		if p, ok := b.(PostLoader); ok {
			p.PostLoad()
		}
	}
	for _, fn := range r.hooks {
		fn()
	}
}

// FieldBlock persists a list of fixed-size values (pointers to numbers,
// arrays or structs, or slices of them) in order
type FieldBlock struct {
	name   string
	values []any
	size   int
	reset  func()
	post   func()
}

// Fields builds a block over values. It panics if a value has no fixed
// encoded size, which is a layout bug.
func Fields(name string, values ...any) *FieldBlock {
	size := 0
	for _, v := range values {
		n := binary.Size(v)
		if n < 0 {
			panic(fmt.Sprintf("eeprom: block %s: %T has no fixed size", name, v))
		}
		size += n
	}
	return &FieldBlock{name: name, values: values, size: size}
}

// WithReset sets the factory-default function
func (f *FieldBlock) WithReset(fn func()) *FieldBlock {
	f.reset = fn
	return f
}

// WithPostLoad sets the recompute function
func (f *FieldBlock) WithPostLoad(fn func()) *FieldBlock {
	f.post = fn
	return f
}

func (f *FieldBlock) Name() string { return f.name }
func (f *FieldBlock) Size() int    { return f.size }

func (f *FieldBlock) Save(w *Writer) {
	for _, v := range f.values {
		w.Value(v)
	}
}

func (f *FieldBlock) Restore(r *Reader) {
	for _, v := range f.values {
		r.Value(v)
	}
}

func (f *FieldBlock) Reset() {
	if f.reset != nil {
		f.reset()
	}
}

func (f *FieldBlock) PostLoad() {
	if f.post != nil {
		f.post()
	}
}
