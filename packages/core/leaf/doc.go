// Package leaf defines the narrow contract between the execution
// engine and the side-effecting operations steps perform (HTTP calls,
// SQL queries, shell commands, waits).
//
// The engine never inspects a leaf's response beyond this package's
// normalized shape; it threads the response to extraction, validation,
// and reporting. Leaves signal structured failure through Error, which
// carries a taxonomy kind for retry filtering and may carry the partial
// response received before the failure.
package leaf
