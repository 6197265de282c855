package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition is false for any status outside the table, so an unknown
// target is an invalid transition rather than a validation error.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

