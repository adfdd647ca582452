package serialize

import "fmt"

// Outcome of a hook invocation.
type Outcome int

const (
	// Declined means the hook holds no data for the request, and another
	// source should be tried.
	Declined Outcome = iota
	// Handled means the hook answered the request.
	Handled
	// Corrupt means data is present but unusable. It stops the fallback chain.
	Corrupt
)

func (o Outcome) String() string {
	switch o {
	case Declined:
		return "declined"
	case Handled:
		return "handled"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the Outcome of a hook, with its Value if Handled or its Reason
// if Corrupt.
type Result[T any] struct {
	Outcome Outcome
	Value   T
	Reason  error
}

// Handle returns a Handled Result of |v|.
func Handle[T any](v T) Result[T] { return Result[T]{Outcome: Handled, Value: v} }

// Decline returns a Declined Result.
func Decline[T any]() Result[T] { return Result[T]{Outcome: Declined} }

// Corrupted returns a Corrupt Result having |reason|.
func Corrupted[T any](reason error) Result[T] { return Result[T]{Outcome: Corrupt, Reason: reason} }

// Handled returns true if the Result is Handled.
func (r Result[T]) Handled() bool { return r.Outcome == Handled }

// Declined returns true if the Result is Declined.
func (r Result[T]) Declined() bool { return r.Outcome == Declined }

// None is the Value type of hooks which return no data.
type None struct{}
