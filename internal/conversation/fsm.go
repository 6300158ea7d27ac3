// Package conversation tracks the multi-step input dialogs of each user.
//
// Every user is in exactly one State. Flows start from any state with Begin,
// move forward with Transition and return to Idle on completion, on Cancel or
// when the session has been idle longer than the TTL.
package conversation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"pawbot/internal/clock"
)

type State int

const (
	Idle State = iota
	AwaitingWeight
	AwaitingWeightDate
	AwaitingReminderTime
	AwaitingReminderMessage
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingWeight:
		return "awaiting_weight"
	case AwaitingWeightDate:
		return "awaiting_weight_date"
	case AwaitingReminderTime:
		return "awaiting_reminder_time"
	case AwaitingReminderMessage:
		return "awaiting_reminder_message"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrBadTransition = errors.New("transition not allowed")

// allowed lists forward edges. Staying in a state is always allowed and
// Cancel reaches Idle from anywhere.
var allowed = map[State][]State{
	AwaitingWeight:          {AwaitingWeightDate},
	AwaitingWeightDate:      {Idle},
	AwaitingReminderTime:    {AwaitingReminderMessage},
	AwaitingReminderMessage: {Idle},
}

// Draft holds input collected by earlier steps.
type Draft struct {
	Weight float64
	Time   string
}

type Session struct {
	State   State
	Draft   Draft
	Touched time.Time
}

const DefaultTTL = 30 * time.Minute

type Manager struct {
	mu       sync.Mutex
	clock    clock.Clock
	ttl      time.Duration
	sessions map[int64]Session
}

func New(ttl time.Duration, c clock.Clock) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Manager{clock: c, ttl: ttl, sessions: map[int64]Session{}}
}

// Current returns the user's session. Expired sessions read as Idle.
func (m *Manager) Current(user int64) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(user)
}

func (m *Manager) currentLocked(user int64) Session {
	s, ok := m.sessions[user]
	if !ok {
		return Session{State: Idle}
	}
	if m.clock.Now().Sub(s.Touched) > m.ttl {
		delete(m.sessions, user)
		return Session{State: Idle}
	}
	return s
}

// Begin enters the first step of a flow, discarding any flow in progress.
func (m *Manager) Begin(user int64, entry State) error {
	if entry != AwaitingWeight && entry != AwaitingReminderTime {
		return fmt.Errorf("%w: begin %s", ErrBadTransition, entry)
	}
	m.mu.Lock()
	m.sessions[user] = Session{State: entry, Touched: m.clock.Now()}
	m.mu.Unlock()
	return nil
}

// Transition moves the user from the state they are in to `to`, applying
// update to the draft. Reaching Idle ends the session.
func (m *Manager) Transition(user int64, from, to State, update func(d *Draft)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.currentLocked(user)
	if cur.State != from {
		return fmt.Errorf("%w: in %s, not %s", ErrBadTransition, cur.State, from)
	}
	if from != to && !edge(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, from, to)
	}
	if to == Idle {
		delete(m.sessions, user)
		return nil
	}
	if update != nil {
		update(&cur.Draft)
	}
	cur.State = to
	cur.Touched = m.clock.Now()
	m.sessions[user] = cur
	return nil
}

func edge(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Cancel returns the user to Idle and reports the state they left.
func (m *Manager) Cancel(user int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.currentLocked(user).State
	delete(m.sessions, user)
	return prev
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	n := 0
	for user, s := range m.sessions {
		if now.Sub(s.Touched) > m.ttl {
			delete(m.sessions, user)
			n++
		}
	}
	return n
}

// Len counts sessions not in Idle, expired ones included until swept.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
