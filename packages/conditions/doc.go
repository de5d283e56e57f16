// Package conditions evaluates the boolean expressions gating step
// execution (skip_if, only_if) and polling success.
//
// Three condition shapes reduce to a bool: plain comparison strings
// ("${status} == 200"), concise expressions combining comparisons with
// and/or/not (NOT binds tightest, then AND, then OR), and structured
// mappings ({and: [...]}, {or: [...]}, {not: ...}). Sequences are an
// implicit AND. Malformed shapes fail with ErrMalformed rather than
// degrading to false: a broken condition is a config error, not a test
// outcome.
package conditions
