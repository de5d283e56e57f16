// Package retry computes backoff delays and keeps per-step attempt
// history. A Policy describes the strategy; a Manager owns the attempt
// log for one step execution and answers whether a failure warrants
// another try.
package retry
