// Package deploy flattens a workflow, assigns component indices, runs
// each node's strategy deploy hook, resolves link tables into the
// component store, and then replicates the result to every connected
// worker. See Pipeline.Deploy for the full sequence.
package deploy
