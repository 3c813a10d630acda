package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"ember/kernel"
	"ember/tasks"
	"ember/timeevent"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is a scenario: the kernel mode, the tasks to create and the timer
// events that release them.
type Config struct {
	Preemptive bool `yaml:"preemptive"`
	// TickPeriod is the SysTick reload value. On the simulator it counts
	// executed slices.
	TickPeriod uint32 `yaml:"tick_period"`
	// SlicesPerFrame is how many CPU steps one application step runs.
	SlicesPerFrame int `yaml:"slices_per_frame"`
	// Unprivileged runs tasks in unprivileged thread mode.
	Unprivileged bool `yaml:"unprivileged"`
	// StackWords is the default task stack size.
	StackWords int `yaml:"stack_words"`
	// Clock is the initial time base reading, "mm:ss.mmm".
	Clock string `yaml:"clock"`
	// StopAfter halts the system after this many ticks; zero runs forever.
	StopAfter  uint64 `yaml:"stop_after"`
	TraceDepth int    `yaml:"trace_depth"`
	LogLevel   string `yaml:"log_level"`

	Tasks  []TaskConfig  `yaml:"tasks"`
	Events []EventConfig `yaml:"events"`
}

type TaskConfig struct {
	ID         uint8  `yaml:"id"`
	Name       string `yaml:"name"`
	Program    string `yaml:"program"`
	Param      uint32 `yaml:"param"`
	StackWords int    `yaml:"stack_words"`
	// Blocked creates the task parked, waiting for its first release.
	Blocked bool `yaml:"blocked"`
}

type EventConfig struct {
	Name  string `yaml:"name"`
	Unit  string `yaml:"unit"`
	Every uint32 `yaml:"every"`
	Tasks []int  `yaml:"tasks"`
	Once  bool   `yaml:"once"`
}

var ErrConfig = errors.New("invalid config")

// DefaultConfig is the built-in demo: two periodic tasks released by timer
// events, a one-shot report and the idle task.
func DefaultConfig() Config {
	return Config{
		Preemptive:     true,
		TickPeriod:     4,
		SlicesPerFrame: 200,
		StackWords:     256,
		TraceDepth:     1024,
		LogLevel:       "info",
		Tasks: []TaskConfig{
			{ID: 1, Name: "sensor", Program: "periodic", Param: 12},
			{ID: 2, Name: "logger", Program: "periodic", Param: 30, Blocked: true},
			{ID: 4, Name: "report", Program: "oneshot", Param: 400},
			{ID: uint8(kernel.IdleTask), Name: "idle", Program: "idle"},
		},
		Events: []EventConfig{
			{Name: "sample", Unit: "ms", Every: 20, Tasks: []int{1}},
			{Name: "flush", Unit: "ms", Every: 100, Tasks: []int{2}},
		},
	}
}

// LoadConfig reads a YAML scenario. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML scenario over the defaults. Lists replace the
// default lists; unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the scenario against the kernel's limits.
func (c Config) Validate() error {
	if c.TickPeriod == 0 {
		return fmt.Errorf("%w: tick_period must be positive", ErrConfig)
	}
	if c.SlicesPerFrame <= 0 {
		return fmt.Errorf("%w: slices_per_frame must be positive", ErrConfig)
	}
	if _, err := c.level(); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrConfig, err)
	}
	if _, err := c.clock(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(c.Tasks) == 0 {
		return fmt.Errorf("%w: no tasks", ErrConfig)
	}

	var ids kernel.TaskSet
	for _, t := range c.Tasks {
		id := kernel.TaskID(t.ID)
		if !id.Valid() {
			return fmt.Errorf("%w: task %d: id out of range", ErrConfig, t.ID)
		}
		if ids.Has(id) {
			return fmt.Errorf("%w: task %d: duplicate id", ErrConfig, t.ID)
		}
		ids = ids.With(id)
		if _, ok := tasks.Lookup(t.Program); !ok {
			return fmt.Errorf("%w: task %d: unknown program %q", ErrConfig, t.ID, t.Program)
		}
		if w := c.stackWords(t); w < kernel.FrameWords {
			return fmt.Errorf("%w: task %d: stack of %d words cannot hold a frame", ErrConfig, t.ID, w)
		}
	}

	for _, e := range c.Events {
		if _, err := e.event(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
		for _, id := range e.Tasks {
			if !ids.Has(kernel.TaskID(id)) {
				return fmt.Errorf("%w: event %q: task %d is not defined", ErrConfig, e.Name, id)
			}
		}
	}
	return nil
}

func (c Config) stackWords(t TaskConfig) int {
	if t.StackWords > 0 {
		return t.StackWords
	}
	return c.StackWords
}

func (c Config) level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(c.LogLevel)
}

func (c Config) clock() (kernel.Clock, error) {
	if c.Clock == "" {
		return kernel.Clock{}, nil
	}
	var clk kernel.Clock
	if _, err := fmt.Sscanf(c.Clock, "%d:%d.%d", &clk.Minutes, &clk.Seconds, &clk.Millis); err != nil {
		return kernel.Clock{}, fmt.Errorf("clock %q: want mm:ss.mmm", c.Clock)
	}
	if !clk.Valid() {
		return kernel.Clock{}, fmt.Errorf("clock %q: out of range", c.Clock)
	}
	return clk, nil
}

func (e EventConfig) event() (timeevent.Event, error) {
	unit, err := timeevent.ParseUnit(e.Unit)
	if err != nil {
		return timeevent.Event{}, fmt.Errorf("event %q: %w", e.Name, err)
	}
	ev := timeevent.Event{Name: e.Name, Unit: unit, Every: e.Every, Once: e.Once}
	for _, id := range e.Tasks {
		if id < 0 || id >= kernel.MaxTasks {
			return timeevent.Event{}, fmt.Errorf("event %q: task %d out of range", e.Name, id)
		}
		ev.Tasks = ev.Tasks.With(kernel.TaskID(id))
	}
	if ev.Every == 0 || ev.Tasks.Empty() {
		return timeevent.Event{}, fmt.Errorf("event %q: needs every > 0 and at least one task", e.Name)
	}
	return ev, nil
}
