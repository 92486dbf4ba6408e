// Package module hosts reloadable guest code.
//
// A Host owns one guest module: it watches the module's sources, rebuilds
// the module in the background when they change, and swaps the running
// tree for a fresh Backstage built by the new generation. Go cannot unload
// code, so isolation is by generation: every load opens a new Boundary,
// the old boundary is closed and its tree freed, and references issued
// through Handle report ErrStaleGeneration once their generation is gone.
//
// Only plain data crosses a reload. A root implementing StateExporter is
// asked for a value that is CBOR encoded before unload; the next root,
// if it implements StateImporter, receives the encoded bytes.
package module
