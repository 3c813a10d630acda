//go:build !debug

package kernel

const debugAsserts = false
