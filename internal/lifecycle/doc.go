// Package lifecycle implements the Connection Lifecycle Controller.
//
// The controller keeps the live view attached to the event channel:
//   - The detector collapses both loss events into one signal and unbinds
//     itself before recovery starts, so only one recovery cycle can run
//   - The recovery loop polls the channel at a fixed interval and either
//     reloads the application or abandons the channel after MaxAttempts polls
//   - The suppressor delays the fallback view so short blips never show
//   - The gate decides between live content and the fallback view
//
// Every piece of state is owned by the event loop goroutine. Exported
// methods post work to the loop and never touch state directly.
package lifecycle
