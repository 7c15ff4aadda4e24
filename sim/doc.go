// Package sim provides the core stepping engine for the stock-and-flow simulator.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - entity.go: the closed entity variant set (Reservoir, SourceSink, Flow, Control)
//     and the two-generation previous/current value pair
//   - loader.go: XML configuration parsing, name linking, and formula tokenization
//   - clock.go: the run/pause/step state machine and the two-phase per-step update
//
// # Architecture
//
// The sim package owns the entity graph and the clock; collaborators live in
// sub-packages or behind small interfaces:
//   - sim/stream/: bounded-cache streaming reader for step-indexed override batches
//   - sim/output/: CSV result sink implementing RowWriter
//   - Evaluator: the black-box arithmetic expression evaluator (eval.go adapts
//     govaluate; tests substitute their own)
//
// # Update Protocol
//
// Every step runs three phases over the graph in insertion order: apply pending
// overrides, back up current values into previous values, then recompute each
// entity from the previous-value snapshot. Controls and Flows read only
// previous values, which makes the compute phase order-independent (up to the
// documented capacity-clamp caveat in flow.go).
package sim
