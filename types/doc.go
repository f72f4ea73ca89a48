// Package types contains the shared types, interfaces and sentinel errors
// used across the worktree library.
//
// It exists so that the root package and the component packages
// (partition, alloc, region, internal/hierarchy) can exchange values
// without import cycles.
package types
