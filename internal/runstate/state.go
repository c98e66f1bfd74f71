package runstate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// State is the resumable bookkeeping of an automation campaign.
type State struct {
	TransactionCount       int        `json:"transaction_count"`
	CurrentRound           int        `json:"current_round"`
	TotalTransactions      int        `json:"total_transactions"`
	SuccessfulTransactions int        `json:"successful_transactions"`
	FailedTransactions     int        `json:"failed_transactions"`
	LastTransactionTime    *Timestamp `json:"last_transaction_time"`
}

func (s *State) RecordSuccess(at time.Time) {
	s.TotalTransactions++
	s.SuccessfulTransactions++
	s.touch(at)
}

func (s *State) RecordFailure(at time.Time) {
	s.TotalTransactions++
	s.FailedTransactions++
	s.touch(at)
}

func (s *State) touch(at time.Time) {
	ts := Timestamp{Time: at.UTC()}
	s.LastTransactionTime = &ts
}

func (s State) Summary() string {
	return fmt.Sprintf("Total: %d, Success: %d, Failed: %d", s.TotalTransactions, s.SuccessfulTransactions, s.FailedTransactions)
}

// Timestamp is written as RFC3339 and also reads the zone-less ISO form
// older state files contain.
type Timestamp struct {
	time.Time
}

// zonelessLayouts carry no offset; older state files wrote local wall time.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// zonelessLocation is the zone assumed for timestamps without an offset.
var zonelessLocation = time.Local

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("last_transaction_time: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, zonelessLocation); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("last_transaction_time: unrecognized timestamp %q", raw)
}
