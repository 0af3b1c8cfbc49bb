package coalesce

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/romshark/coalesce/clock"
	"github.com/romshark/coalesce/internal/queue"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

type Duration = time.Duration

const (
	Millisecond = time.Millisecond
	Second      = time.Second
	Minute      = time.Minute
	Hour        = time.Hour
)

const (
	// DefaultResolution is the default window within which
	// a timer is considered due.
	DefaultResolution = 15 * Millisecond

	// DefaultMinRearm is the default minimum delay the alarm
	// is rearmed for after a dispatch pass.
	DefaultMinRearm = 250 * Millisecond

	// MaxDelay is the longest delay a timer can be scheduled for.
	// Longer delays are clamped.
	// Half of the comparable tick range stays free so that overdue
	// timers still compare before the latest possible one.
	MaxDelay = (1<<30 - 1) * Millisecond
)

// ErrInvalidDelay is returned when a negative delay is passed.
var ErrInvalidDelay = errors.New("invalid delay")

// Entry is a pending timer as seen by a queue implementation.
type Entry = queue.Entry

type QueueReader interface {
	Has(id uint32) bool
	Get(id uint32) (Entry, bool)
	Len() int
	Scan(
		after uint32,
		fn func(Entry) bool,
	) (afterFound bool)
}

type QueueWriter interface {
	Push(Entry) (atFront bool)
	Front() (Entry, bool)
	Update(id uint32, effective clock.Tick) (ok bool)
	Remove(id uint32) (ok bool)
}

type QueueReadWriter interface {
	QueueReader
	QueueWriter
}

// Config configures a Scheduler.
// Zero values select the defaults.
type Config struct {
	// Resolution is the window within which a timer is considered due.
	Resolution Duration

	// MinRearm is the minimum delay the alarm is rearmed for
	// after a dispatch pass.
	MinRearm Duration

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Name identifies the scheduler in log entries.
	// Defaults to a random KSUID.
	Name string

	// IsolateCallbacks makes the scheduler recover and log panicking
	// callbacks so that the remaining callbacks of the same pass still run.
	// By default a panic propagates on the alarm goroutine.
	IsolateCallbacks bool
}

var (
	defaultScheduler *Scheduler
	defaultOnce      sync.Once
)

// Default returns the process-wide Scheduler used by Add, Remove,
// ResetDelay and Len. It's created on first use.
func Default() *Scheduler {
	defaultOnce.Do(func() {
		defaultScheduler = New()
	})
	return defaultScheduler
}

// Add schedules fn for execution after the given delay
// on the default scheduler.
func Add(in Duration, fn func()) (ID, error) {
	return Default().Add(in, fn)
}

// Remove cancels a pending timer of the default scheduler
// and returns true. Returns false if no timer was canceled.
func Remove(id ID) bool {
	return Default().Remove(id)
}

// ResetDelay reschedules a pending timer of the default scheduler.
func ResetDelay(id ID, in Duration) error {
	return Default().ResetDelay(id, in)
}

// Len returns the number of pending timers of the default scheduler.
func Len() int {
	return Default().Len()
}

// New creates a new scheduler using the system clock
// and the default configuration.
func New() *Scheduler {
	return NewWith(nil, nil, Config{})
}

// NewWith is similar to New but replaces the default time provider,
// queue implementation and configuration.
// If t == nil then the system clock and the standard time package are used.
// If q == nil then coalesce/internal/queue.Queue is used.
func NewWith(
	t TimeProvider,
	q QueueReadWriter,
	c Config,
) *Scheduler {
	if t == nil {
		t = timeProvider{}
	}
	if q == nil {
		q = queue.New()
	}
	if c.Resolution <= 0 {
		c.Resolution = DefaultResolution
	}
	if c.MinRearm <= 0 {
		c.MinRearm = DefaultMinRearm
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Name == "" {
		c.Name = ksuid.New().String()
	}
	s := &Scheduler{
		provider:   t,
		queue:      q,
		resolution: c.Resolution,
		minRearm:   c.MinRearm,
		isolate:    c.IsolateCallbacks,
		name:       c.Name,
		log: c.Logger.Named("coalesce").With(
			zap.String("scheduler", c.Name),
		),
	}
	s.alarm = alarm{provider: t, fn: s.dispatch}
	return s
}

// Scheduler is a coalescing timer scheduler.
type Scheduler struct {
	provider   TimeProvider
	lock       sync.RWMutex
	queue      QueueReadWriter
	alarm      alarm
	lastID     ID
	resolution Duration
	minRearm   Duration
	isolate    bool
	name       string
	log        *zap.Logger
}

// Name returns the name the scheduler logs with.
func (s *Scheduler) Name() string {
	return s.name
}

// Now returns the current tick of the scheduler's clock.
func (s *Scheduler) Now() clock.Tick {
	return s.provider.Now()
}

// Add schedules fn for execution after the given delay and returns
// the identifier of the new timer.
// fn is invoked at most once on the alarm goroutine.
// Returns ErrInvalidDelay if in is negative.
func (s *Scheduler) Add(in Duration, fn func()) (ID, error) {
	if in < 0 {
		return 0, fmt.Errorf("adding timer with delay %s: %w", in, ErrInvalidDelay)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.provider.Now()
	at := now.Add(clampDelay(in))
	id := s.nextID()
	s.insert(now, Entry{ID: uint32(id), Initial: at, Effective: at, Fn: fn})
	return id, nil
}

// Remove cancels a pending timer and returns true.
// Returns false if the timer is unknown or has already fired.
// The alarm is left armed, its next pass observes the updated queue.
func (s *Scheduler) Remove(id ID) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.queue.Remove(uint32(id))
}

// ResetDelay reschedules a pending timer to fire after the given delay.
//
// A later deadline is recorded in place and the timer keeps its position
// in the queue until a dispatch pass reaches it and moves it to the new
// deadline. An earlier or equal deadline moves the timer immediately.
// Unknown timers are ignored.
// Returns ErrInvalidDelay if in is negative.
func (s *Scheduler) ResetDelay(id ID, in Duration) error {
	if in < 0 {
		return fmt.Errorf(
			"resetting delay of timer %s to %s: %w", id, in, ErrInvalidDelay,
		)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	e, ok := s.queue.Get(uint32(id))
	if !ok {
		return nil
	}

	now := s.provider.Now()
	at := now.Add(clampDelay(in))
	if at.After(e.Initial) {
		s.queue.Update(e.ID, at)
		return nil
	}

	s.queue.Remove(e.ID)
	e.Initial, e.Effective = at, at
	s.insert(now, e)
	return nil
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.queue.Len()
}

// Armed returns the tick the alarm is armed for.
// ok is false if the alarm is disarmed.
func (s *Scheduler) Armed() (deadline clock.Tick, ok bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.alarm.deadline, s.alarm.armed
}

// Scan scans all pending timers after the given timer in the order
// they're dispatched executing fn for each until either the end
// of the queue is reached or fn returns false.
// Starts from the front of the queue if after is zero.
// Returns false if after doesn't exist, otherwise returns true.
func (s *Scheduler) Scan(after ID, fn func(Entry) bool) (ok bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.queue.Scan(uint32(after), fn)
}

// insert pushes e and arms the alarm for it
// if e is the new front or the alarm is disarmed.
func (s *Scheduler) insert(now clock.Tick, e Entry) {
	if s.queue.Push(e) || !s.alarm.armed {
		s.arm(now, e.Initial.Sub(now))
	}
}

func (s *Scheduler) arm(now clock.Tick, in Duration) {
	s.alarm.arm(now, in)
	s.log.Debug("alarm armed", zap.Duration("in", in))
}

func (s *Scheduler) disarm() {
	s.alarm.disarm()
	s.log.Debug("alarm disarmed")
}

// nextID returns the next free non-zero identifier.
func (s *Scheduler) nextID() ID {
	for {
		s.lastID++
		if s.lastID != 0 && !s.queue.Has(uint32(s.lastID)) {
			return s.lastID
		}
	}
}

// dispatch is invoked by the alarm.
// It collects all due callbacks, rearms the alarm for the next pending
// timer and invokes the collected callbacks outside of the lock.
func (s *Scheduler) dispatch() {
	s.lock.Lock()

	now := s.provider.Now()
	var due []func()
	var postponed []Entry
	for {
		e, ok := s.queue.Front()
		if !ok || e.Initial.Sub(now) >= s.resolution {
			break
		}
		s.queue.Remove(e.ID)
		if e.Effective.After(e.Initial) {
			postponed = append(postponed, e)
			continue
		}
		due = append(due, e.Fn)
	}

	// Postponed timers are reinserted only after draining so that
	// none of them is invoked in the pass that moved it.
	for _, e := range postponed {
		e.Initial = e.Effective
		s.queue.Push(e)
	}

	if e, ok := s.queue.Front(); ok {
		s.arm(now, max(s.minRearm, e.Initial.Sub(now)))
	} else {
		s.disarm()
	}

	s.log.Debug("dispatch",
		zap.Int("due", len(due)),
		zap.Int("postponed", len(postponed)),
		zap.Int("pending", s.queue.Len()),
	)

	s.lock.Unlock()

	for _, fn := range due {
		s.invoke(fn)
	}
}

func (s *Scheduler) invoke(fn func()) {
	if fn == nil {
		return
	}
	if !s.isolate {
		fn()
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("timer callback panicked",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
}

func clampDelay(in Duration) Duration {
	if in > MaxDelay {
		return MaxDelay
	}
	return in
}

// ID is a timer identifier. The zero ID is never assigned.
type ID uint32

// String returns the stringified identifier.
func (id ID) String() string {
	return fmt.Sprintf("%08x", uint32(id))
}
