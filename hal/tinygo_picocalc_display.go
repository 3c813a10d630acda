//go:build tinygo && baremetal && picocalc

package hal

import (
	"errors"
	"machine"
	"time"
)

// ili9488 drives the PicoCalc panel over SPI1: GP10 SCK, GP11 SDO, GP12 SDI,
// GP13 CS, GP14 D/C, GP15 reset.
type ili9488 struct {
	spi         *machine.SPI
	cs, dc, rst machine.Pin
	line        []byte
}

func initILI9488() (*ili9488, error) {
	if machine.SPI1 == nil {
		return nil, errors.New("SPI1 unavailable")
	}
	if err := machine.SPI1.Configure(machine.SPIConfig{
		SCK:       machine.GP10,
		SDO:       machine.GP11,
		SDI:       machine.GP12,
		Frequency: 40_000_000,
	}); err != nil {
		return nil, err
	}

	d := &ili9488{
		spi:  machine.SPI1,
		cs:   machine.GP13,
		dc:   machine.GP14,
		rst:  machine.GP15,
		line: make([]byte, picoCalcSize*2),
	}
	for _, p := range []machine.Pin{d.cs, d.dc, d.rst} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.High()
	}

	d.rst.Low()
	time.Sleep(64 * time.Millisecond)
	d.rst.High()
	time.Sleep(140 * time.Millisecond)

	panelInit(d, ili9488Init, time.Sleep)
	return d, nil
}

func (d *ili9488) command(op byte, args ...byte) {
	d.cs.Low()
	d.dc.Low()
	d.spi.Tx([]byte{op}, nil)
	d.dc.High()
	if len(args) > 0 {
		d.spi.Tx(args, nil)
	}
	d.cs.High()
}

func (d *ili9488) data(b []byte) {
	d.cs.Low()
	d.dc.High()
	d.spi.Tx(b, nil)
	d.cs.High()
}

func (d *ili9488) blit(fb []byte, w, h int) error {
	return panelBlit(d, fb, w, h, d.line)
}
