package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/satsuma/internal/errors"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type callArg struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Input string `json:"input"`
}

func TestDialChecksChainID(t *testing.T) {
	server := newMockRPCServer(t)
	defer server.Close()

	client, err := Dial(context.Background(), server.URL, 5115)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	client.Close()

	_, err = Dial(context.Background(), server.URL, 1)
	if err == nil {
		t.Fatal("expected chain mismatch error")
	}
	if clierr.ExitCode(err) != int(clierr.CodeUnavailable) {
		t.Fatalf("expected unavailable exit code, got %d", clierr.ExitCode(err))
	}

	if _, err := Dial(context.Background(), "  ", 5115); err == nil {
		t.Fatal("expected empty rpc url error")
	}
}

func TestTokenReaderViews(t *testing.T) {
	server := newMockRPCServer(t)
	defer server.Close()

	client, err := Dial(context.Background(), server.URL, 0)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()
	reader := NewTokenReader(client)

	token := common.HexToAddress("0x2C8abD2A528D19AFc33d2eBA507c0F405c131335")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	spender := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	allowance, err := reader.Allowance(context.Background(), token, owner, spender)
	if err != nil {
		t.Fatalf("Allowance failed: %v", err)
	}
	if allowance.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("unexpected allowance: %s", allowance)
	}

	balance, err := reader.BalanceOf(context.Background(), token, owner)
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if balance.Cmp(big.NewInt(2_500_000)) != 0 {
		t.Fatalf("unexpected balance: %s", balance)
	}

	decimals, err := reader.Decimals(context.Background(), token)
	if err != nil {
		t.Fatalf("Decimals failed: %v", err)
	}
	if decimals != 6 {
		t.Fatalf("unexpected decimals: %d", decimals)
	}

	symbol, err := reader.Symbol(context.Background(), token)
	if err != nil {
		t.Fatalf("Symbol failed: %v", err)
	}
	if symbol != "USDC" {
		t.Fatalf("unexpected symbol: %q", symbol)
	}

	end, err := reader.LockEnd(context.Background(), token, owner)
	if err != nil {
		t.Fatalf("LockEnd failed: %v", err)
	}
	if !end.Equal(time.Unix(1_900_000_000, 0).UTC()) {
		t.Fatalf("unexpected lock end: %s", end)
	}

	native, err := reader.NativeBalance(context.Background(), owner)
	if err != nil {
		t.Fatalf("NativeBalance failed: %v", err)
	}
	if native.Cmp(big.NewInt(0x2386f26fc10000)) != 0 {
		t.Fatalf("unexpected native balance: %s", native)
	}
}

func TestTokenReaderSurfacesCallErrors(t *testing.T) {
	server := newMockRPCServer(t)
	defer server.Close()

	client, err := Dial(context.Background(), server.URL, 0)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	broken := common.HexToAddress("0x000000000000000000000000000000000000dead")
	if _, err := NewTokenReader(client).Decimals(context.Background(), broken); err == nil {
		t.Fatal("expected decimals error for reverting token")
	}
}

func newMockRPCServer(t *testing.T) *httptest.Server {
	t.Helper()

	broken := common.HexToAddress("0x000000000000000000000000000000000000dead")
	handler := func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Method {
		case "eth_chainId":
			writeRPCResult(w, req.ID, "0x13fb")
		case "eth_getBalance":
			writeRPCResult(w, req.ID, "0x2386f26fc10000")
		case "eth_call":
			var arg callArg
			if len(req.Params) > 0 {
				_ = json.Unmarshal(req.Params[0], &arg)
			}
			if common.HexToAddress(arg.To) == broken {
				writeRPCError(w, req.ID, 3, "execution reverted")
				return
			}
			data := arg.Input
			if data == "" {
				data = arg.Data
			}
			out, err := viewResponse(data)
			if err != nil {
				writeRPCError(w, req.ID, -32000, err.Error())
				return
			}
			writeRPCResult(w, req.ID, "0x"+hex.EncodeToString(out))
		default:
			writeRPCError(w, req.ID, -32601, fmt.Sprintf("method not supported in test: %s", req.Method))
		}
	}
	return httptest.NewServer(http.HandlerFunc(handler))
}

func viewResponse(data string) ([]byte, error) {
	raw := common.FromHex(strings.TrimSpace(data))
	if len(raw) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	switch {
	case matches(raw, erc20ABI.Methods["allowance"].ID):
		return erc20ABI.Methods["allowance"].Outputs.Pack(big.NewInt(1000))
	case matches(raw, erc20ABI.Methods["balanceOf"].ID):
		return erc20ABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(2_500_000))
	case matches(raw, erc20ABI.Methods["decimals"].ID):
		return erc20ABI.Methods["decimals"].Outputs.Pack(uint8(6))
	case matches(raw, erc20ABI.Methods["symbol"].ID):
		return erc20ABI.Methods["symbol"].Outputs.Pack("USDC")
	case matches(raw, escrowABI.Methods["locked__end"].ID):
		return escrowABI.Methods["locked__end"].Outputs.Pack(big.NewInt(1_900_000_000))
	}
	return nil, fmt.Errorf("unknown selector %x", raw[:4])
}

func matches(calldata, selector []byte) bool {
	return len(calldata) >= 4 && string(calldata[:4]) == string(selector)
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, rawIDOrDefault(id), result)
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":%d,"message":%q}}`, rawIDOrDefault(id), code, message)
}

func rawIDOrDefault(id json.RawMessage) string {
	if len(id) == 0 {
		return "1"
	}
	return string(id)
}
