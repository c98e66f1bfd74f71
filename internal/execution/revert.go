package execution

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

func decodeRevertData(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	if len(data) >= 4 {
		return fmt.Sprintf("custom error 0x%x", data[:4])
	}
	return ""
}

func decodeRevertFromError(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	switch v := dataErr.ErrorData().(type) {
	case string:
		return decodeRevertData(common.FromHex(strings.TrimSpace(v)))
	case []byte:
		return decodeRevertData(v)
	default:
		return ""
	}
}

// withRevertReason appends the decoded revert reason of err, if any.
func withRevertReason(msg string, err error) string {
	if reason := decodeRevertFromError(err); reason != "" {
		return fmt.Sprintf("%s: %v (%s)", msg, err, reason)
	}
	return fmt.Sprintf("%s: %v", msg, err)
}

// replayRevertReason re-executes a reverted request against the block it was
// mined in to recover the reason string. Best effort only.
func replayRevertReason(ctx context.Context, client interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}, req TransactionRequest, block *big.Int) string {
	to := req.To
	msg := ethereum.CallMsg{
		From:     req.From,
		To:       &to,
		Gas:      req.GasLimit,
		GasPrice: req.GasPrice,
		Value:    req.Value,
		Data:     req.Data,
	}
	_, err := client.CallContract(ctx, msg, block)
	if err == nil {
		return ""
	}
	return decodeRevertFromError(err)
}
