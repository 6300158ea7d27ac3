// Package scheduler keeps the table of daily jobs and triggers them.
//
// Jobs are keyed by a caller-chosen identity and fire every day at HH:MM in
// the scheduler's location (robfig/cron). The scheduler is trigger-only: each
// firing is handed to an Executor (the task engine), which runs it under a
// deadline. Adding an identity that already exists is a no-op reported as
// added=false. Jobs added before Start are armed when Start runs.
package scheduler
