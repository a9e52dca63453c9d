// Package voting owns the vote ledger and the denormalized score on each
// post and comment.
//
// A user holds at most one vote per target. Applying a vote either creates
// it, flips it, or leaves it unchanged, and the target's score moves by the
// matching delta in the same storage transaction. Stores must apply that
// delta as an increment against the persisted value, never as a write of a
// value computed in memory.
package voting
