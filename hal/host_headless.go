//go:build !(tinygo && baremetal)

package hal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Hz         int
	Ticks      uint64
	StepBudget int
}

// RunHeadless runs the system without opening a window. The step function
// runs StepBudget times per host tick; returning ErrHalt stops the runner
// without error.
func RunHeadless(ctx context.Context, newApp func(HAL) (func() error, error), cfg HeadlessConfig) error {
	return runHeadless(ctx, New().(*hostHAL), newApp, cfg)
}

func runHeadless(ctx context.Context, h *hostHAL, newApp func(HAL) (func() error, error), cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	if cfg.StepBudget <= 0 {
		cfg.StepBudget = 1
	}

	step, err := newApp(h)
	if err != nil {
		return err
	}

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			h.t.step()
			if step != nil {
				for i := 0; i < cfg.StepBudget; i++ {
					if err := step(); err != nil {
						if errors.Is(err, ErrHalt) {
							return nil
						}
						return err
					}
				}
			}
			tick++
			if cfg.Ticks > 0 && tick >= cfg.Ticks {
				return nil
			}
		}
	}
}
