package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version string       `json:"version"`
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorBody   `json:"error"`
	Meta    EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	ChainID   string    `json:"chain_id,omitempty"`
	Account   string    `json:"account,omitempty"`
}

type AmountInfo struct {
	AmountBaseUnits string `json:"amount_base_units"`
	AmountDecimal   string `json:"amount_decimal"`
	Decimals        int    `json:"decimals"`
}

type TokenBalance struct {
	Symbol  string     `json:"symbol"`
	Address string     `json:"address"`
	Native  bool       `json:"native"`
	Balance AmountInfo `json:"balance"`
}

type CampaignStatus struct {
	PlannedTransactions    int    `json:"planned_transactions"`
	CurrentRound           int    `json:"current_round"`
	TotalTransactions      int    `json:"total_transactions"`
	SuccessfulTransactions int    `json:"successful_transactions"`
	FailedTransactions     int    `json:"failed_transactions"`
	LastTransactionTime    string `json:"last_transaction_time,omitempty"`
	RecordedOutcomes       int    `json:"recorded_outcomes"`
	RecordedSuccesses      int    `json:"recorded_successes"`
	StatePath              string `json:"state_path"`
}
