// Package alloc builds the static mapping between logical partition groups
// and execution units.
//
// The mapping is computed once before the worker hierarchy starts and never
// changes while work is running. Two strategies exist: a one-to-one mapping
// when there are at least as many units as groups, spreading surplus units
// floor/ceil with the remainder on the lowest group ids, and a round-robin
// mapping that shares units among groups otherwise. Both are fully
// deterministic for a given (units, groups) pair.
package alloc
