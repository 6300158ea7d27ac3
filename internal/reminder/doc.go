// Package reminder defines reminder times, the job identity scheme and the
// registry derived from persisted records.
//
// Identity format:
//
//	reminder:<recipient>:<HH:MM>:<message token>
//
// The message token is the trimmed message with "%" escaped as "%25", "_"
// escaped as "%5F" and every whitespace run replaced by a single "_". Two
// reminders of one recipient with the same canonical time and the same
// whitespace-normalised message share an identity; any other pair differs.
package reminder
