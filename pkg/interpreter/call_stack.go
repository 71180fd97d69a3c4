package interpreter

// DefaultMaxCallDepth bounds user-function recursion when the caller
// does not configure a limit.
const DefaultMaxCallDepth = 256

// CallStack counts active user-function frames. The depth guard is the
// engine's only cancellation mechanism: exceeding it aborts the run
// before the host stack grows out of control.
type CallStack struct {
	depth int
}

func (s *CallStack) Push() { s.depth++ }

func (s *CallStack) Pop() {
	if s.depth > 0 {
		s.depth--
	}
}

func (s *CallStack) Depth() int { return s.depth }
