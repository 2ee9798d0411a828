package wheel

import "github.com/sweeney/scroll-stabilizer/internal/logic"

// StepsPerDetent is the number of quadrature transitions in one wheel notch
// on common mechanical encoders.
const StepsPerDetent = 4

// transitions maps prev<<2|cur (each state is a<<1|b) to a step: +1 for the
// 00,01,11,10 sequence, -1 for the reverse, 0 for no change or a skipped state.
var transitions = [16]int{
	0, +1, -1, 0,
	-1, 0, 0, +1,
	+1, 0, 0, -1,
	0, -1, +1, 0,
}

// Quadrature turns A/B line levels into wheel ticks.
// Not safe for concurrent use.
type Quadrature struct {
	state          int
	acc            int
	stepsPerDetent int
}

// NewQuadrature creates a decoder starting from the given line levels.
// stepsPerDetent <= 0 selects StepsPerDetent.
func NewQuadrature(a, b, stepsPerDetent int) *Quadrature {
	if stepsPerDetent <= 0 {
		stepsPerDetent = StepsPerDetent
	}
	return &Quadrature{state: levels(a, b), stepsPerDetent: stepsPerDetent}
}

// Step feeds new line levels and returns the direction of a completed notch,
// or DirectionNone while a notch is still in progress.
func (q *Quadrature) Step(a, b int) logic.Direction {
	cur := levels(a, b)
	q.acc += transitions[q.state<<2|cur]
	q.state = cur

	switch {
	case q.acc >= q.stepsPerDetent:
		q.acc = 0
		return logic.DirectionUp
	case q.acc <= -q.stepsPerDetent:
		q.acc = 0
		return logic.DirectionDown
	}
	return logic.DirectionNone
}

func levels(a, b int) int {
	s := 0
	if a != 0 {
		s |= 2
	}
	if b != 0 {
		s |= 1
	}
	return s
}
