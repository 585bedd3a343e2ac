package bollinger

import "github.com/newthinker/bandrev/internal/core"

// state is the trade state carried from bar to bar
type state int

const (
	stateFlat state = iota
	stateLong
	stateShort
)

// event is what a bar triggers in the current state
type event int

const (
	eventNone event = iota
	eventEnterLong
	eventEnterShort
	eventExit
)

// barView is the per-bar input to the state machine. Undefined values are
// NaN and every comparison against them is false.
type barView struct {
	close     float64
	sma       float64
	upper     float64
	lower     float64
	prevClose float64
	prevSMA   float64
}

// evaluators decide the event for a bar given the current state. Long entry
// is tested before short entry.
var evaluators = [...]func(barView) event{
	stateFlat: func(b barView) event {
		if b.close < b.lower {
			return eventEnterLong
		}
		if b.close > b.upper {
			return eventEnterShort
		}
		return eventNone
	},
	stateLong: func(b barView) event {
		if b.prevClose <= b.prevSMA && b.close > b.sma {
			return eventExit
		}
		return eventNone
	},
	stateShort: func(b barView) event {
		if b.prevClose >= b.prevSMA && b.close < b.sma {
			return eventExit
		}
		return eventNone
	},
}

// transitions lists every legal (state, event) pair
var transitions = map[state]map[event]state{
	stateFlat: {
		eventNone:       stateFlat,
		eventEnterLong:  stateLong,
		eventEnterShort: stateShort,
	},
	stateLong: {
		eventNone: stateLong,
		eventExit: stateFlat,
	},
	stateShort: {
		eventNone: stateShort,
		eventExit: stateFlat,
	},
}

func (s state) position() core.Direction {
	switch s {
	case stateLong:
		return core.Long
	case stateShort:
		return core.Short
	default:
		return core.Flat
	}
}

// machine walks the transition table one bar at a time
type machine struct {
	state state
}

// step applies one bar and returns the event it triggered
func (m *machine) step(b barView) event {
	ev := evaluators[m.state](b)
	next, ok := transitions[m.state][ev]
	if !ok {
		// evaluators only emit events listed for their state
		panic("bollinger: illegal transition")
	}
	m.state = next
	return ev
}
