// Package variables implements the layered variable store and the
// ${...} template renderer used by every executor.
//
// Names resolve through four scopes in priority order: extracted,
// override, profile, global. The merged view is cached and invalidated
// by a monotonic version counter, so repeated reads between writes are
// cheap even while concurrent sub-steps extract into the store.
package variables
