//go:build debug

package kernel

// debugAsserts enables invariant checks in interrupt handlers.
const debugAsserts = true
