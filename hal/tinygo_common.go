//go:build tinygo && baremetal

package hal

import "machine"

type tinyGoDisplay struct {
	fb Framebuffer
}

func (d tinyGoDisplay) Framebuffer() Framebuffer { return d.fb }

// uartLogger writes CRLF-terminated lines. It polls the UART, so it is safe
// from handler mode as long as the line is short.
type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.crlf()
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	_, _ = l.uart.Write(b)
	l.crlf()
}

func (l *uartLogger) crlf() {
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

// stubFramebuffer stands in for a missing panel: it has a size but no pixels,
// so renderers skip it.
type stubFramebuffer struct {
	w, h   int
	format PixelFormat
}

func (f *stubFramebuffer) Width() int             { return f.w }
func (f *stubFramebuffer) Height() int            { return f.h }
func (f *stubFramebuffer) Format() PixelFormat    { return f.format }
func (f *stubFramebuffer) StrideBytes() int       { return f.w * 2 }
func (f *stubFramebuffer) Buffer() []byte         { return nil }
func (f *stubFramebuffer) ClearRGB(r, g, b uint8) {}
func (f *stubFramebuffer) Present() error         { return ErrNotImplemented }
