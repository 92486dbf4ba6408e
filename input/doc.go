// Package input maps raw device events to logical actions.
//
// An InputContext binds raw inputs (keys, mouse buttons, mouse axes) plus a
// required modifier set to action names. The Router owns the active context
// and three families of handlers per action: pressed, held and released.
// Held handlers are grouped; all members of a group are folded into a single
// call per frame with the summed parameter.
package input
