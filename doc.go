// Package coalesce provides a timer scheduler that lets many
// one-shot delayed callbacks share a single underlying alarm.
//
// Pending timers are kept in one sorted queue. The alarm is armed for
// the earliest timer and, once it fires, every timer that is due within
// the resolution window is invoked in a single pass. The alarm is never
// rearmed sooner than the minimum rearm interval after a dispatch pass,
// which trades timing precision for fewer system timers under churn.
//
// All methods of both the package and a Scheduler instance
// are thread-safe and can safely be used from within multiple goroutines.
// Callbacks are invoked sequentially on the alarm goroutine and may
// safely call back into the scheduler.
package coalesce
