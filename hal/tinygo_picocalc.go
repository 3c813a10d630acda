//go:build tinygo && baremetal && picocalc

package hal

import "machine"

type picoCalcHAL struct {
	logger *uartLogger
	fb     Framebuffer
	cpu    *cortexM
}

// New returns the PicoCalc HAL. The kernel runs on the Pico's Cortex-M core
// and the ILI9488 panel shows the boot screen and kernel faults.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})
	logger := &uartLogger{uart: uart}

	var fb Framebuffer
	if lcd, err := initILI9488(); err == nil {
		fb = newPicoCalcFramebuffer(lcd)
	} else {
		logger.WriteLineString("hal: lcd: " + err.Error())
		fb = &stubFramebuffer{w: picoCalcSize, h: picoCalcSize, format: PixelFormatRGB565}
	}

	return &picoCalcHAL{
		logger: logger,
		fb:     fb,
		cpu:    newCortexM(),
	}
}

func (h *picoCalcHAL) Logger() Logger   { return h.logger }
func (h *picoCalcHAL) Display() Display { return tinyGoDisplay{fb: h.fb} }
func (h *picoCalcHAL) Time() Time       { return nil }
func (h *picoCalcHAL) CPU() CPU         { return h.cpu }

const picoCalcSize = 320

type picoCalcFramebuffer struct {
	buf []byte
	lcd *ili9488
}

func newPicoCalcFramebuffer(lcd *ili9488) *picoCalcFramebuffer {
	return &picoCalcFramebuffer{
		buf: make([]byte, picoCalcSize*picoCalcSize*2),
		lcd: lcd,
	}
}

func (f *picoCalcFramebuffer) Width() int          { return picoCalcSize }
func (f *picoCalcFramebuffer) Height() int         { return picoCalcSize }
func (f *picoCalcFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *picoCalcFramebuffer) StrideBytes() int    { return picoCalcSize * 2 }
func (f *picoCalcFramebuffer) Buffer() []byte      { return f.buf }

func (f *picoCalcFramebuffer) ClearRGB(r, g, b uint8) { fillRGB565(f.buf, RGB565(r, g, b)) }

func (f *picoCalcFramebuffer) Present() error {
	return f.lcd.blit(f.buf, picoCalcSize, picoCalcSize)
}
