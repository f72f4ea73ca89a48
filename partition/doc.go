// Package partition provides the deterministic mapping from work-item keys
// to logical partition groups, plus the workload-estimation heuristic used
// by the thread allocator for balancing.
//
// Routing correctness depends only on AssignGroup (key mod G). The boundary
// weight and workload estimate are load-balancing hints and never affect
// where a key routes.
package partition
