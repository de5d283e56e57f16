// Package engine executes parsed test cases. The test case executor
// sequences steps; each step goes through the same lifecycle of gate,
// setup hooks, attempt loop, variable extraction, teardown hooks, and
// result assembly. Concurrent, poll, and loop steps replace the attempt
// loop with their own scheduling but share everything else.
package engine
