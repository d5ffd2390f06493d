package domain

type State string

const (
	StateReviewing       State = "reviewing"
	StateSubmitting      State = "submitting"
	StateAwaitingPayment State = "awaiting_payment"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
	StateDebtBlocked     State = "debt_blocked"
)

var transitions = map[State][]State{
	StateReviewing:       {StateSubmitting},
	StateSubmitting:      {StateAwaitingPayment, StateFailed, StateDebtBlocked, StateReviewing},
	StateAwaitingPayment: {StateCompleted, StateReviewing},
	StateCompleted:       {StateReviewing},
	StateFailed:          {StateReviewing},
	StateDebtBlocked:     {StateReviewing},
}

// CanTransition reports whether the state machine allows from -> to.
// Returning to Reviewing from an active state means the attempt was abandoned.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// GuardsNavigation is true while leaving the page would strand a locked cart.
func (s State) GuardsNavigation() bool {
	return s == StateSubmitting || s == StateAwaitingPayment
}

func (s State) String() string { return string(s) }
