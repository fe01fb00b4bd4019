package resilience

import (
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Outcome is what an attempt tells the breaker about the dependency.
type Outcome int

const (
	// OutcomeSuccess means the dependency answered, even if the answer was "not found".
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the dependency failed or did not answer in time.
	OutcomeFailure
	// OutcomeIgnored means the attempt says nothing about the dependency, e.g. the
	// caller went away. It releases a half-open trial without changing state.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "ignored"
	}
}

// Ticket is handed out by Allow and returned with the outcome. Outcomes carrying
// a ticket from an earlier state are discarded.
type Ticket struct {
	generation uint64
	trial      bool
}

// Breaker is a count-based circuit breaker over a rolling window of the last
// threshold outcomes.
//
// CLOSED -> OPEN when the window is full and the failure ratio reaches the limit.
// OPEN -> HALF_OPEN once the open delay has elapsed, admitting exactly one trial.
// HALF_OPEN -> CLOSED when the trial succeeds (window cleared).
// HALF_OPEN -> OPEN when the trial fails (open delay restarts).
type Breaker struct {
	threshold int
	ratio     float64
	openDelay time.Duration
	now       func() time.Time
	onChange  func(from, to State)

	mu            sync.Mutex
	state         State
	generation    uint64
	window        []bool
	next          int
	size          int
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

// NewBreaker creates a closed breaker. onChange, when non-nil, is invoked under
// the breaker lock on every transition and must not call back into the breaker.
func NewBreaker(threshold int, ratio float64, openDelay time.Duration, now func() time.Time, onChange func(from, to State)) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		threshold: threshold,
		ratio:     ratio,
		openDelay: openDelay,
		now:       now,
		onChange:  onChange,
		window:    make([]bool, threshold),
	}
}

// State returns the current state. An OPEN breaker whose delay has elapsed still
// reports OPEN until the next Allow moves it to HALF_OPEN.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow asks permission for one attempt. It returns ErrCircuitOpen while open or
// while a half-open trial is in flight.
func (b *Breaker) Allow() (Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.openDelay {
			return Ticket{}, ErrCircuitOpen
		}
		b.transitionTo(StateHalfOpen)
		b.trialInFlight = true
		return Ticket{generation: b.generation, trial: true}, nil
	case StateHalfOpen:
		if b.trialInFlight {
			return Ticket{}, ErrCircuitOpen
		}
		b.trialInFlight = true
		return Ticket{generation: b.generation, trial: true}, nil
	default:
		return Ticket{generation: b.generation}, nil
	}
}

// Record reports the outcome of an attempt admitted by Allow.
func (b *Breaker) Record(t Ticket, outcome Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.generation != b.generation {
		return
	}

	switch b.state {
	case StateHalfOpen:
		if !t.trial {
			return
		}
		b.trialInFlight = false
		switch outcome {
		case OutcomeSuccess:
			b.transitionTo(StateClosed)
		case OutcomeFailure:
			b.trip()
		}
	case StateClosed:
		if outcome == OutcomeIgnored {
			return
		}
		b.push(outcome == OutcomeFailure)
		if b.size >= b.threshold && float64(b.failures)/float64(b.size) >= b.ratio {
			b.trip()
		}
	}
}

func (b *Breaker) push(failure bool) {
	if b.size == len(b.window) {
		if b.window[b.next] {
			b.failures--
		}
	} else {
		b.size++
	}
	b.window[b.next] = failure
	if failure {
		b.failures++
	}
	b.next = (b.next + 1) % len(b.window)
}

func (b *Breaker) reset() {
	for i := range b.window {
		b.window[i] = false
	}
	b.next, b.size, b.failures = 0, 0, 0
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.transitionTo(StateOpen)
}

// transitionTo must be called with mu held.
func (b *Breaker) transitionTo(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.generation++
	b.trialInFlight = false
	if to == StateClosed {
		b.reset()
	}
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
