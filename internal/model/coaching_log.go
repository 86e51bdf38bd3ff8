package model

import (
	"encoding/json"
	"time"
)

// CurrentCoachingLogVersion is stamped on every created or edited log.
const CurrentCoachingLogVersion = "1.1"

// CoachingLog mirrors the `coaching_logs` table.  At most one log per client
// is unlocked: the latest one.
type CoachingLog struct {
	ID        uint64          `json:"id"`
	ClientID  uint64          `json:"client_id"`
	Version   string          `json:"version"`
	Data      json.RawMessage `json:"data"`
	Locked    bool            `json:"locked"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
	EditedBy  string          `json:"edited_by"`
	EditedAt  time.Time       `json:"edited_at"`
}

// Reimbursement mirrors `coaching_log_reimbursement`; one row per log.
type Reimbursement struct {
	ID            uint64     `json:"id"`
	CoachingLogID uint64     `json:"coaching_log_id"`
	Reimbursed    bool       `json:"reimbursed"`
	ReimbursedTo  string     `json:"reimbursed_to"`
	ReimbursedAt  *time.Time `json:"reimbursed_at"`
	ReimbursedVia *string    `json:"reimbursed_via"`
}
