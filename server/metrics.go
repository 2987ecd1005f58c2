package server

import "time"

// MetricsCollector receives server events. Implementations must be safe for
// concurrent use and should not block; sessions call them inline.
type MetricsCollector interface {
	// RecordCommand is called after every command. success is true when the
	// final reply code was below 400.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer is called after a completed RETR, STOR, APPE or STOU.
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection is called for every control connection. reason is
	// "accepted", "global_limit_reached" or "per_ip_limit_reached".
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication is called for every USER/PASS outcome.
	RecordAuthentication(success bool, user string)
}
