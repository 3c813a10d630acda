//go:build tinygo

package kernel

// TinyGo has no stack walker; the fault handler gets the reason only.
func captureStack() []byte {
	return nil
}
