// Package signal implements typed multicast publish/subscribe for atoms.
//
// A Signal holds an ordered list of subscriber callbacks. Connect returns a
// Subscription that the subscribing atom tracks, so that every subscription
// it made is disposed when the atom is destroyed. Emit dispatches to a
// snapshot of the subscribers taken before the first call, which keeps a
// handler that disconnects itself (or others) from corrupting the dispatch
// that is already in progress.
package signal
