package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {StatusCancelled: true},
	StatusCancelled: {},
}

// CanTransition reports whether an admin may move an order from one status to
// another. Writing the current status back is allowed as a no-op; regressions
// (paid -> pending, cancelled -> anything) are not.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return validNext[from][to]
}

// RequiresRefund reports whether the transition cancels an order whose
// payment was already captured.
func RequiresRefund(from, to Status) bool {
	return from == StatusPaid && to == StatusCancelled
}
