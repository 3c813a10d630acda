//go:build tinygo && baremetal && !picocalc

package hal

import "machine"

type tinyGoHAL struct {
	logger *uartLogger
	fb     Framebuffer
	cpu    *cortexM
}

// New returns a bare Cortex-M HAL: UART log, no display.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})

	return &tinyGoHAL{
		logger: &uartLogger{uart: uart},
		fb:     &stubFramebuffer{w: 320, h: 240, format: PixelFormatRGB565},
		cpu:    newCortexM(),
	}
}

func (h *tinyGoHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHAL) Display() Display { return tinyGoDisplay{fb: h.fb} }
func (h *tinyGoHAL) Time() Time       { return nil }
func (h *tinyGoHAL) CPU() CPU         { return h.cpu }
