package value

// Program is a reference-counted container holding a compiled unit's
// source text, path, root function, and a running-invocation counter
// (spec §3). It is reclaimed by reference counting, not by the
// mark-sweep GC — freed only when both RefCount and RunningCount reach
// zero — and is tracked in a VM-level intrusive list via Next.
type Program struct {
	Source       string
	Path         string
	Root         Callable
	RefCount     int
	RunningCount int
	Next         *Program // intrusive list link, owned by the VM
}

func NewProgram(source, path string) *Program {
	return &Program{Source: source, Path: path}
}

// Retain increments the reference count, returning the Program for
// chaining.
func (p *Program) Retain() *Program {
	p.RefCount++
	return p
}

// Release decrements the reference count and reports whether the
// Program is now free to reclaim (both counters at zero).
func (p *Program) Release() bool {
	if p.RefCount > 0 {
		p.RefCount--
	}
	return p.RefCount == 0 && p.RunningCount == 0
}

// EnterRun increments the running-invocation counter (a frame for this
// program's root function is now on the VM's frame stack).
func (p *Program) EnterRun() { p.RunningCount++ }

// ExitRun decrements the running-invocation counter and reports whether
// the Program is now free to reclaim.
func (p *Program) ExitRun() bool {
	if p.RunningCount > 0 {
		p.RunningCount--
	}
	return p.RefCount == 0 && p.RunningCount == 0
}
