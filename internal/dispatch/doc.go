// Package dispatch turns account triggers into notifications. The Dispatcher
// flips status synchronously through the account store and hands delivery to a
// Sender on its own goroutine; delivery outcomes are reported through Hooks,
// logs and spans and never roll status back.
package dispatch
