package hal

import (
	"errors"
	"time"
)

// panelBus is the command/data link of an MIPI-DBI style panel controller.
type panelBus interface {
	// command sends op with the D/C line low, then args as data.
	command(op byte, args ...byte)
	// data streams pixel bytes after a memory write command.
	data(b []byte)
}

type panelCmd struct {
	op    byte
	args  []byte
	delay time.Duration
}

// ILI9488 controller commands.
const (
	cmdSleepOut  = 0x11
	cmdInvertOn  = 0x21
	cmdDisplayOn = 0x29
	cmdColumns   = 0x2A
	cmdRows      = 0x2B
	cmdMemWrite  = 0x2C
	cmdMADCTL    = 0x36
	cmdPixelFmt  = 0x3A
	cmdFrameRate = 0xB1
	cmdDispFunc  = 0xB6
	cmdPower1    = 0xC0
	cmdPower2    = 0xC1
	cmdVCOM      = 0xC5
)

// ili9488Init brings a PicoCalc panel up in 16 bpp, mirrored for the
// carrier's wiring, with BGR order and inversion on.
var ili9488Init = []panelCmd{
	{op: cmdPower1, args: []byte{0x17, 0x15}},
	{op: cmdPower2, args: []byte{0x41}},
	{op: cmdVCOM, args: []byte{0x00, 0x12, 0x80, 0x40}},
	{op: cmdPixelFmt, args: []byte{0x55}},
	{op: cmdFrameRate, args: []byte{0xA0, 0x11}},
	{op: cmdDispFunc, args: []byte{0x02, 0x22, 0x27}},
	{op: cmdInvertOn},
	{op: cmdMADCTL, args: []byte{0x40 | 0x08 | 0x04}},
	{op: cmdSleepOut, delay: 120 * time.Millisecond},
	{op: cmdDisplayOn},
}

func panelInit(bus panelBus, cmds []panelCmd, sleep func(time.Duration)) {
	for _, c := range cmds {
		bus.command(c.op, c.args...)
		if c.delay > 0 && sleep != nil {
			sleep(c.delay)
		}
	}
}

func panelWindow(bus panelBus, x0, y0, x1, y1 uint16) {
	bus.command(cmdColumns, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1))
	bus.command(cmdRows, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1))
	bus.command(cmdMemWrite)
}

var errPanelFrame = errors.New("panel: framebuffer does not match the window")

// panelBlit sends a little-endian RGB565 frame one row at a time through
// line, swapping to the big-endian order the controller reads.
func panelBlit(bus panelBus, fb []byte, w, h int, line []byte) error {
	row := w * 2
	if w <= 0 || h <= 0 || len(fb) < row*h || len(line) < row {
		return errPanelFrame
	}
	panelWindow(bus, 0, 0, uint16(w-1), uint16(h-1))
	for y := 0; y < h; y++ {
		src := fb[y*row : (y+1)*row]
		for i := 0; i < row; i += 2 {
			line[i], line[i+1] = src[i+1], src[i]
		}
		bus.data(line[:row])
	}
	return nil
}
