// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the reimbursement ledger consumer.
package queue

// CoachingLogCreatedQueue is the durable queue carrying CoachingLogCreatedEvent.
const CoachingLogCreatedQueue = "coaching_log.created"

// CoachingLogCreatedEvent is published after a coaching log and its
// reimbursement row are committed.  It carries enough for the ledger
// consumer to record the pending reimbursement without querying the database.
type CoachingLogCreatedEvent struct {
	CoachingLogID   uint64 `json:"coaching_log_id"`
	ReimbursementID uint64 `json:"reimbursement_id"`
	ClientID        uint64 `json:"client_id"`
	Coach           string `json:"coach"`
	CreatedAt       string `json:"created_at"`
}
