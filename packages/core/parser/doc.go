// Package parser reads YAML test case files into immutable step definitions.
//
// A test case file declares case-level variables, named profiles, defaults,
// and an ordered list of steps. Each step carries a type tag (request,
// database, wait, loop, concurrent, script, poll), control fields
// (skip_if, only_if, depends_on), a retry policy, extractors and
// validations, plus exactly one type-specific payload.
//
// Definitions are plain data: nothing in this package executes a step.
package parser
