package execution

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Kind string

type State string

// ErrorClass classifies a failed outcome. Empty on success.
type ErrorClass string

const (
	KindApprove      Kind = "approve"
	KindSwap         Kind = "swap"
	KindAddLiquidity Kind = "add_liquidity"
	KindLock         Kind = "lock"
	KindUnlock       Kind = "unlock"
	KindStake        Kind = "stake"
	KindVote         Kind = "vote"
)

const (
	StateResolving State = "resolving"
	StateApproving State = "approving"
	StateExecuting State = "executing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

const (
	ClassNone       ErrorClass = ""
	ClassValidation ErrorClass = "validation"
	ClassResolve    ErrorClass = "resolve"
	ClassBuild      ErrorClass = "build"
	ClassApproval   ErrorClass = "approval"
	ClassReverted   ErrorClass = "reverted"
	ClassBroadcast  ErrorClass = "broadcast"
	ClassSign       ErrorClass = "sign"
	ClassReceipt    ErrorClass = "receipt"
	ClassPanic      ErrorClass = "panic"
)

// TransactionRequest is an unsigned legacy transaction plus the bookkeeping
// the submitter needs to report on it.
type TransactionRequest struct {
	From     common.Address
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Nonce    uint64
	Kind     Kind
	Encoding Encoding
	Method   string
}

// Outcome is the terminal record of one transaction or one sequence.
type Outcome struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Success     bool       `json:"success"`
	TxHash      string     `json:"tx_hash,omitempty"`
	Class       ErrorClass `json:"class,omitempty"`
	Error       string     `json:"error,omitempty"`
	Nonce       *uint64    `json:"nonce,omitempty"`
	State       State      `json:"state,omitempty"`
	ExplorerURL string     `json:"explorer_url,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Submitted reports whether the outcome refers to a broadcast transaction.
func (o Outcome) Submitted() bool {
	return o.TxHash != ""
}

func newOutcome(kind Kind) Outcome {
	return Outcome{ID: NewOutcomeID(), Kind: kind, Timestamp: time.Now().UTC()}
}

func failedOutcome(kind Kind, class ErrorClass, err error) Outcome {
	out := newOutcome(kind)
	out.Class = class
	out.State = StateFailed
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func NewOutcomeID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "out-unknown"
	}
	return fmt.Sprintf("out_%s", hex.EncodeToString(b))
}

func noncePtr(n uint64) *uint64 {
	return &n
}
