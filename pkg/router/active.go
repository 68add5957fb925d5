package router

import "sync/atomic"

// Active is the process-scoped memory of the last dispatched selection.
// Client-initiated side tasks arrive with default-looking model names; the
// active selection lets the router resolve them to whatever the user last
// chose explicitly, instead of clobbering that choice.
//
// The cell is written before the dispatching request performs any upstream
// I/O and is swapped atomically, so concurrent readers always observe some
// complete past selection.
type Active struct {
	current atomic.Pointer[Selection]
}

// Get returns the current active selection, or nil if none has been
// recorded since startup.
func (a *Active) Get() *Selection {
	return a.current.Load()
}

// Record stores the selection of a successful dispatch. Dispatches to the
// Anthropic passthrough are treated as internal side tasks and never
// override the active selection.
func (a *Active) Record(sel Selection) {
	if sel.Provider == ProviderAnthropic {
		return
	}
	s := sel
	a.current.Store(&s)
}
