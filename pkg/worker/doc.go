/*
Package worker hosts operation instances on a single runtime node.

Each Instance pairs one strategy-managed worker ID with a single goroutine
reading from a mailbox: every message addressed to that worker, whether
produced locally or delivered over the cluster transport, is processed
strictly in arrival order. Registry is the per-node table of live
instances, keyed by {deployment, component_index, worker_id}; Supervisor
watches instance goroutines and restarts a crashed one with fresh initial
state, without disturbing its peers.

# Core components

Instance: one running worker, its strategy context, and its mailbox.

Registry: tracks every Instance on this node, and removes them in bulk
when their owning deployment is torn down.

Supervisor: restarts a failed Instance in place, preserving its worker ID
so in-flight references to it remain valid.
*/
package worker
