// Package schedule implements the outbound message scheduler.
//
// A Scheduler validates requests, derives a recurrence Rule, arms it on a Driver
// and, at each fire, resolves content through an optional Enhancer, dispatches it
// through a Backend and appends the outcome to a HistoryLog. One-shot jobs retire
// after their first fire; repeating jobs stay armed until cancelled.
//
// Job state lives in a JobStore (in-memory by default, optionally written through
// to internal/storage) and the execution log in a HistoryLog.
package schedule

import _ "time/tzdata" // timezone names must resolve on hosts without zoneinfo
