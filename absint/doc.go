// Package absint verifies method bytecode by abstract interpretation.
//
// A method is verified by running every instruction over types instead of
// values. Register contexts are snapshotted at checkpoints (method start,
// jump targets, try and catch boundaries) and joined whenever control flow
// reaches a checkpoint again; a worklist of entry points is drained until no
// join changes any saved context. Exception handlers are then entered with
// the join of the contexts at every instruction that may throw inside the
// protected range.
//
// The outcome of a method is the worst diag.Status observed. The first
// Error stops the method.
package absint
