package module

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/najoast/stagehand/core"
)

// Entry is the contract a guest module exports exactly once: it produces
// the root of the module's tree.
type Entry interface {
	NewBackstage() core.BackstageAtom
}

// EntryFunc adapts a function to Entry.
type EntryFunc func() core.BackstageAtom

// NewBackstage calls f.
func (f EntryFunc) NewBackstage() core.BackstageAtom {
	return f()
}

// StateExporter is implemented by roots that hand state to the next
// generation. The returned value must be plain data.
type StateExporter interface {
	ExportState() (any, error)
}

// StateImporter is implemented by roots that accept state from the
// previous generation. It runs before the root is initialized.
type StateImporter interface {
	ImportState(h Handoff) error
}

// Handoff is the encoded state of a previous generation.
type Handoff struct {
	Module     string
	Generation uint64
	Data       []byte
}

// Decode unmarshals the handoff into v.
func (h Handoff) Decode(v any) error {
	return cbor.Unmarshal(h.Data, v)
}

// Empty reports whether the previous generation exported nothing.
func (h Handoff) Empty() bool {
	return len(h.Data) == 0
}

func encodeHandoff(module string, gen uint64, root core.BackstageAtom) (Handoff, error) {
	h := Handoff{Module: module, Generation: gen}
	exp, ok := root.(StateExporter)
	if !ok {
		return h, nil
	}
	v, err := exp.ExportState()
	if err != nil || v == nil {
		return h, err
	}
	h.Data, err = cbor.Marshal(v)
	return h, err
}
