// Package eventloop implements the single-threaded cooperative scheduler the
// connection lifecycle runs on.
//
// The Loop:
//   - Executes posted tasks in FIFO order on one goroutine
//   - Runs timers in deadline order (ties broken by scheduling order)
//   - Accepts Post/AfterFunc from any goroutine
//   - Never runs two tasks at the same time, so task code needs no locks
//
// Time comes from a clock.Clock. Production code drives the loop with Run;
// tests use a clock.Mock and call RunPending after moving the clock.
package eventloop
