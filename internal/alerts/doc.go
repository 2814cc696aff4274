// Package alerts forwards failed scheduled deliveries to an operator chat.
//
// The Service listens on the event bus for job.fired events with a failed
// status, suppresses repeats within a window and sends through a rate-limited
// worker with retries.
package alerts
