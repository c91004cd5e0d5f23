// Package dispatch provides the pausable, priority-ordered worker pool that
// serializes access to a shared session. Tasks are ordered by priority
// (lower value runs first) with a monotonic sequence number as the tie-break,
// so equal-priority tasks run in submission order. Pausing gates workers
// between tasks; a task that is already running is never interrupted.
package dispatch
