// Package tree owns the provider's element model.
//
// Ownership boundary:
// - the arena of stored elements (nodes, parameters, functions, matrices)
//   keyed by ID, with parents held as IDs
// - path lookup including on-demand synthesis of dynamic matrix crosspoints
//   behind a scoped Handle
// - the matrix connection engine and per-crosspoint gains
// - dirty tracking and change notification through a NotificationSink
//
// A Tree is not safe for concurrent use. The provider reactor is its only
// writer and reader.
package tree
