// Package engine is the root orchestrator. It owns the frame loop, ticks
// every guest module host, and re-registers a module's tree with the
// renderer and subsystems whenever the module swaps to a new generation.
//
// Everything that touches a live tree runs on the frame loop goroutine.
// Other goroutines hand work to it with Post.
package engine
