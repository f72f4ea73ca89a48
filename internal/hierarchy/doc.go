// Package hierarchy implements the worker node tree that executes partition
// keys: a root node for orphaned work, one level-1 node per partition group
// running one execution context per allocated unit, and on-demand deeper
// children that add consumer parallelism to overloaded nodes.
//
// Nodes pull from bounded queues, steal from busy siblings when idle, and on
// a callback fault drain their remaining queue to their parent and leave the
// routing table.
package hierarchy
