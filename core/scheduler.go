package core

// Poller is a state machine advanced once per scheduler pass
type Poller interface {
	Poll(now uint32)
}

// PollFunc adapts a plain function to the Poller interface
type PollFunc func(now uint32)

// Poll calls f(now)
func (f PollFunc) Poll(now uint32) {
	f(now)
}

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler is the single cooperative loop of the firmware. Every pass
// polls each registered state machine and fires the timers that are due.
// Nothing in it blocks; callers that need to wait call WaitFor, which keeps
// running passes until their condition holds.
type Scheduler struct {
	clock     Clock
	pollers   []Poller
	timerList *Timer
	passes    uint64
}

// NewScheduler creates a scheduler driven by clock
func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Clock returns the scheduler's time source
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Now returns the current tick
func (s *Scheduler) Now() uint32 {
	return s.clock.Millis()
}

// Register adds a poller; pollers run in registration order
func (s *Scheduler) Register(p Poller) {
	s.pollers = append(s.pollers, p)
}

// ScheduleTimer adds a timer to the schedule
func (s *Scheduler) ScheduleTimer(t *Timer) {
	s.insertTimer(t)
}

// CancelTimer removes t if it is still scheduled
func (s *Scheduler) CancelTimer(t *Timer) {
	if s.timerList == t {
		s.timerList = t.Next
		t.Next = nil
		return
	}
	for cur := s.timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// insertTimer inserts a timer in sorted order by WakeTime
func (s *Scheduler) insertTimer(t *Timer) {
	if s.timerList == nil || before(t.WakeTime, s.timerList.WakeTime) {
		t.Next = s.timerList
		s.timerList = t
		return
	}

	current := s.timerList
	for current.Next != nil && !before(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// before compares wrapping ticks
func before(a, b uint32) bool {
	return int32(a-b) < 0
}

// timerDispatch processes due timers
func (s *Scheduler) timerDispatch(now uint32) {
	for s.timerList != nil && !before(now, s.timerList.WakeTime) {
		timer := s.timerList
		s.timerList = timer.Next
		timer.Next = nil

		if timer.Handler(timer) == SF_RESCHEDULE {
			s.insertTimer(timer)
		}
	}
}

// Idle runs one scheduler pass
func (s *Scheduler) Idle() {
	now := s.clock.Millis()
	for _, p := range s.pollers {
		p.Poll(now)
	}
	s.timerDispatch(now)
	s.passes++
}

// Passes returns the number of completed passes
func (s *Scheduler) Passes() uint64 {
	return s.passes
}

// WaitFor runs passes until cond holds or timeout ms have elapsed.
// A zero timeout waits without limit. It reports whether cond held.
func (s *Scheduler) WaitFor(cond func() bool, timeout uint32) bool {
	start := s.clock.Millis()
	for !cond() {
		if timeout > 0 && Elapsed(s.clock.Millis(), start, timeout) {
			return false
		}
		s.Idle()
	}
	return true
}
