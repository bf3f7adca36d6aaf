package standalone

import "printcore/core"

// Buzzer drives the beeper. A zero frequency silences it.
type Buzzer interface {
	Tone(freqHz uint16)
}

// Tone is one note of a feedback pattern
type Tone struct {
	Duration uint32 // ms
	Freq     uint16 // Hz
}

// Feedback patterns
var (
	SuccessTones = []Tone{{Duration: 100, Freq: 659}, {Duration: 100, Freq: 698}}
	FailureTones = []Tone{{Duration: 400, Freq: 440}, {Duration: 400, Freq: 440}}
	ClickTone    = []Tone{{Duration: 2, Freq: 1000}}

	// Filament changer alerts
	StallTones = []Tone{
		{Duration: 100, Freq: 659}, {Duration: 200, Freq: 698}, {Duration: 100, Freq: 659},
		{Duration: 300, Freq: 440}, {Duration: 100, Freq: 659},
	}
	ResumeTones = []Tone{{Duration: 200, Freq: 404}, {Duration: 200, Freq: 404}}
)

// Sound plays tone sequences through the scheduler. Mode is persisted.
type Sound struct {
	Mode uint8

	buzzer Buzzer
	sched  *core.Scheduler
	timer  core.Timer
	queue  []Tone
	active bool
	played int
}

// NewSound creates a player; a nil buzzer only counts tones
func NewSound(sched *core.Scheduler, buzzer Buzzer) *Sound {
	s := &Sound{Mode: SoundModeOn, buzzer: buzzer, sched: sched}
	s.timer.Handler = s.next
	return s
}

// Reset loads the factory sound mode
func (s *Sound) Reset() {
	s.Mode = SoundModeOn
}

// SetMode selects on, silent (clicks muted) or mute
func (s *Sound) SetMode(mode uint8) {
	if mode > SoundModeMute {
		mode = SoundModeOn
	}
	s.Mode = mode
}

// Feedback plays the success or failure pattern
func (s *Sound) Feedback(ok bool) {
	if ok {
		s.Play(SuccessTones)
	} else {
		s.Play(FailureTones)
	}
}

// Click plays the short UI click unless the mode is silent or mute
func (s *Sound) Click() {
	if s.Mode == SoundModeOn {
		s.Play(ClickTone)
	}
}

// Play queues tones. Nothing plays in mute mode.
func (s *Sound) Play(tones []Tone) {
	if s.Mode == SoundModeMute || s.sched == nil {
		return
	}
	s.queue = append(s.queue, tones...)
	if !s.active {
		s.active = true
		s.timer.WakeTime = s.sched.Now()
		s.sched.ScheduleTimer(&s.timer)
	}
}

// next starts the head tone and reschedules for the one after it
func (s *Sound) next(t *core.Timer) uint8 {
	if len(s.queue) == 0 {
		s.emit(0)
		s.active = false
		return core.SF_DONE
	}
	tone := s.queue[0]
	s.queue = s.queue[1:]
	s.emit(tone.Freq)
	s.played++
	t.WakeTime += tone.Duration
	return core.SF_RESCHEDULE
}

func (s *Sound) emit(freq uint16) {
	if s.buzzer != nil {
		s.buzzer.Tone(freq)
	}
}

// Played returns the number of tones started
func (s *Sound) Played() int {
	return s.played
}

// Busy reports whether tones are still queued or sounding
func (s *Sound) Busy() bool {
	return s.active
}
