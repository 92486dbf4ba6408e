// Package core implements the atom tree: nodes with a three-phase
// lifecycle, the backstage root that owns per-tree services, deferred
// destruction through the reaper, and the wiring resolver that turns a
// type's declarations into bound callbacks.
//
// An atom is any type that embeds Node. A tree root embeds Backstage.
// Behaviour is declared on the type, not registered by hand:
//
//	type Player struct {
//		core.Node
//		Body *Body                  `atom:"component"`
//		Died *signal.Signal1[string]
//	}
//
//	func (*Player) Declare() core.Declaration {
//		return core.Declaration{
//			Update: []string{"Move"},
//			Timers: []core.TimerDecl{{Method: "Blink", Seconds: 0.5}},
//			Inputs: []core.InputDecl{{Method: "Jump", Action: "jump"}},
//		}
//	}
//
// Wiring plans are computed once per concrete type and cached in the
// backstage, then bound to each instance on initialization.
package core
