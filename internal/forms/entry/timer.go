package entry

import (
	"time"

	"github.com/fieldforms/fieldforms-go/internal/forms/schema"
)

// TimerState is one of the two states of a timer field.
type TimerState string

const (
	TimerRunning TimerState = "RUNNING"
	TimerStopped TimerState = "STOPPED"
)

// TimerEvent is one start/stop transition in a timer's audit log.
type TimerEvent struct {
	State     TimerState `json:"state"`
	Timestamp time.Time  `json:"timestamp"`
}

// TimerMeta carries a timer field's state machine: the current state,
// the last known elapsed seconds, and the append-only history of
// start/stop events. History is never truncated; resets are
// deliberately not logged so a reset clears the slate.
type TimerMeta struct {
	State     TimerState   `json:"state"`
	LastValue int          `json:"lastValue"`
	History   []TimerEvent `json:"history"`
}

// ToggleTimer flips the timer between STOPPED and RUNNING, appending
// the transition to history with the current UTC time. Returns the
// new state.
func (e *FormEntry) ToggleTimer(entryKey string) (TimerState, error) {
	meta, err := e.timerMeta(entryKey)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if meta.State == TimerRunning {
		meta.State = TimerStopped
	} else {
		meta.State = TimerRunning
	}
	meta.History = append(meta.History, TimerEvent{State: meta.State, Timestamp: now})
	e.UpdatedAt = now
	return meta.State, nil
}

// ResetTimer forces the timer to STOPPED with a zero value, whatever
// its current state. The reset itself is not recorded in history.
func (e *FormEntry) ResetTimer(entryKey string) error {
	meta, err := e.timerMeta(entryKey)
	if err != nil {
		return err
	}
	meta.State = TimerStopped
	meta.LastValue = 0
	e.Values[entryKey].Value = 0
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// TickTimer advances a running timer by one second and returns the new
// elapsed value. A stopped timer is left untouched.
func (e *FormEntry) TickTimer(entryKey string) (int, error) {
	meta, err := e.timerMeta(entryKey)
	if err != nil {
		return 0, err
	}
	if meta.State != TimerRunning {
		return TimerSeconds(e.Values[entryKey].Value), nil
	}
	next := TimerSeconds(e.Values[entryKey].Value) + 1
	e.Values[entryKey].Value = next
	meta.LastValue = next
	return next, nil
}

func (e *FormEntry) timerMeta(entryKey string) (*TimerMeta, error) {
	field := e.Config.FindField(entryKey)
	if field == nil {
		return nil, schema.NewValidationError("no field with entry key %q", entryKey)
	}
	if !field.Type.IsTimer() {
		return nil, schema.NewValidationError("field %q is not a timer", entryKey)
	}
	v := e.Values[entryKey]
	if v == nil {
		v = &FieldEntryValue{Value: 0}
		e.Values[entryKey] = v
	}
	if v.Meta == nil {
		v.Meta = &TimerMeta{State: TimerStopped}
	}
	return v.Meta, nil
}

// TimerSeconds coerces a persisted timer value to whole seconds.
// JSON round-trips numbers as float64; anything non-numeric counts as
// zero.
func TimerSeconds(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
