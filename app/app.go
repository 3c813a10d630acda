package app

import (
	"fmt"
	"io"

	"ember/hal"
	"ember/kernel"
	"ember/tasks"
	"ember/timeevent"
	"ember/trace"

	"github.com/rs/zerolog"
)

// System is a kernel with its tasks, timer events and trace, running on one
// HAL CPU.
type System struct {
	h      hal.HAL
	cpu    hal.CPU
	k      *kernel.Kernel
	events *timeevent.Table
	rec    *trace.Recorder
	log    zerolog.Logger
	cfg    Config
	names  map[kernel.TaskID]string

	hooked bool
	last   kernel.TaskID
	lastOK bool
	halted bool

	// hostMillis is the last wall-clock millisecond seen on the HAL time
	// stream.
	hostMillis uint64
}

// hookable CPUs report ticks and switches to the trace directly.
type hookable interface {
	SetHooks(hal.SimHooks)
}

// New builds the system described by cfg and starts the kernel. On a
// hardware CPU Start does not return to the caller: the boot context is
// abandoned by the first switch.
func New(h hal.HAL, cfg Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cpu := h.CPU()
	if cpu == nil {
		return nil, fmt.Errorf("new system: %w", hal.ErrNotImplemented)
	}
	level, _ := cfg.level()
	clk, _ := cfg.clock()

	s := &System{
		h:     h,
		cpu:   cpu,
		cfg:   cfg,
		log:   newLogger(h.Logger(), level),
		rec:   trace.NewRecorder(cfg.TraceDepth),
		names: map[kernel.TaskID]string{},
	}
	installFaultHandler(h, s.log)
	bootScreen(h, "building kernel")

	exit := cpu.LoadProgram(func(t *hal.Thread) { tasks.Exit(s.k)(t) })
	s.k = kernel.New(cpu, kernel.Config{TaskReturn: exit})
	if err := s.k.Init(cfg.Preemptive); err != nil {
		return nil, err
	}
	if err := s.k.SetClock(clk); err != nil {
		return nil, err
	}

	s.events = timeevent.NewTable(s.k)
	s.events.OnRelease = func(ev timeevent.Event) {
		s.log.Trace().Str("event", ev.Name).Stringer("tasks", ev.Tasks).Msg("release")
	}
	s.events.OnError = func(ev timeevent.Event, err error) {
		s.log.Error().Err(err).Str("event", ev.Name).Msg("release refused")
	}
	for _, e := range cfg.Events {
		ev, _ := e.event()
		if _, err := s.events.Add(ev); err != nil {
			return nil, err
		}
	}
	s.k.SetBoundaryNotifier(kernel.NotifierFunc(s.notify))

	if hc, ok := cpu.(hookable); ok {
		s.hooked = true
		hc.SetHooks(hal.SimHooks{Switch: s.rec.Switch})
	}
	cpu.SetTaskPrivilege(!cfg.Unprivileged)

	for _, tc := range cfg.Tasks {
		if err := s.createTask(tc); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Bool("preemptive", cfg.Preemptive).
		Uint32("tick_period", cfg.TickPeriod).
		Bool("unprivileged", cfg.Unprivileged).
		Int("tasks", len(cfg.Tasks)).
		Int("events", s.events.Len()).
		Msg("starting kernel")
	bootScreen(h, "starting kernel")
	if err := s.k.Start(cfg.TickPeriod); err != nil {
		return nil, err
	}
	s.log.Info().Uint8("current", uint8(s.k.CurrentTID())).Msg("kernel started")
	return s, nil
}

func (s *System) createTask(tc TaskConfig) error {
	id := kernel.TaskID(tc.ID)
	build, _ := tasks.Lookup(tc.Program)
	entry := s.cpu.LoadProgram(build(s.k))
	st, err := s.cpu.AllocStack(s.cfg.stackWords(tc))
	if err != nil {
		return fmt.Errorf("task %d: %w", tc.ID, err)
	}
	if err := s.k.CreateTask(id, st, entry, tc.Param); err != nil {
		return err
	}
	if tc.Blocked {
		if err := s.k.BlockTasks(kernel.TasksOf(id)); err != nil {
			return err
		}
	}
	name := tc.Name
	if name == "" {
		name = tc.Program
	}
	s.names[id] = name
	s.log.Debug().
		Uint8("id", tc.ID).
		Str("name", name).
		Str("program", tc.Program).
		Uint32("param", tc.Param).
		Int("stack_words", len(st.Words)).
		Bool("blocked", tc.Blocked).
		Msg("task created")
	return nil
}

// notify runs in the tick handler for every crossed boundary.
func (s *System) notify(g kernel.Granularity) {
	s.events.NotifyBoundary(g)
	s.rec.NotifyBoundary(g)
	if g != kernel.Millisecond {
		s.log.Debug().Stringer("unit", g).Stringer("clock", s.k.Clock()).Msg("boundary")
		return
	}
	if !s.hooked && s.k.State().Started {
		// without CPU hooks, follow the kernel's decisions
		if id := s.k.CurrentTID(); !s.lastOK || id != s.last {
			s.rec.Switch(s.last, s.lastOK, id)
			s.last, s.lastOK = id, true
		}
	}
	s.rec.Tick(s.k.Clock())
}

// Step runs one frame: SlicesPerFrame CPU steps, then the trace is drawn.
// It returns hal.ErrHalt once StopAfter ticks have elapsed, and the fault
// as an error when the CPU or the kernel stops.
func (s *System) Step() (err error) {
	if s.halted {
		return hal.ErrHalt
	}
	defer func() {
		if r := recover(); r != nil {
			if !kernel.InFaultMode() {
				panic(r)
			}
			s.halted = true
			err = fmt.Errorf("%v", r)
		}
	}()

	for i := 0; i < s.cfg.SlicesPerFrame; i++ {
		if err := s.cpu.Step(); err != nil {
			s.halted = true
			s.log.Error().Err(err).Msg("cpu stopped")
			return err
		}
		if s.cfg.StopAfter > 0 && s.k.Ticks() >= s.cfg.StopAfter {
			s.halted = true
			s.render()
			s.logSummary()
			return hal.ErrHalt
		}
	}
	s.drainTime()
	s.render()
	return nil
}

func (s *System) drainTime() {
	t := s.h.Time()
	if t == nil {
		return
	}
	for {
		select {
		case ms := <-t.Ticks():
			s.hostMillis = ms
		default:
			return
		}
	}
}

// HostMillis returns the wall-clock milliseconds the HAL reported so far.
// It stays zero on HALs without a time stream.
func (s *System) HostMillis() uint64 { return s.hostMillis }

func (s *System) render() {
	disp := s.h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil || fb.Buffer() == nil {
		return
	}
	if err := s.rec.Render(fb, s.names); err != nil {
		s.log.Debug().Err(err).Msg("render trace")
	}
}

func (s *System) logSummary() {
	sum := s.rec.Summary()
	st := s.k.State()
	s.log.Info().
		Uint64("ticks", sum.Ticks).
		Uint64("switches", sum.Switches).
		Uint64("releases", s.events.Releases()).
		Uint64("release_failures", s.events.Failures()).
		Stringer("clock", s.k.Clock()).
		Uint64("host_ms", s.hostMillis).
		Stringer("exited", st.Exited).
		Msg("halted")
}

// Kernel returns the running kernel.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// Trace returns the trace recorder.
func (s *System) Trace() *trace.Recorder { return s.rec }

// Events returns the timer event table.
func (s *System) Events() *timeevent.Table { return s.events }

// Names returns the task names by ID.
func (s *System) Names() map[kernel.TaskID]string { return s.names }

// WriteSummary writes the trace totals as text.
func (s *System) WriteSummary(w io.Writer) error {
	return s.rec.WriteText(w, s.names)
}

// StepFunc adapts New to the HAL runners.
func StepFunc(cfg Config) func(hal.HAL) (func() error, error) {
	return func(h hal.HAL) (func() error, error) {
		s, err := New(h, cfg)
		if err != nil {
			return nil, err
		}
		return s.Step, nil
	}
}

// Run builds the system and steps it forever (TinyGo entrypoint).
func Run(h hal.HAL, cfg Config) {
	s, err := New(h, cfg)
	if err != nil {
		if l := h.Logger(); l != nil {
			l.WriteLineString("ember: " + err.Error())
		}
		select {}
	}
	for {
		if err := s.Step(); err != nil {
			select {}
		}
	}
}
