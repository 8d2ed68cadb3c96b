package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const pairABIJSON = `[
	{"type":"function","name":"getReserves","stateMutability":"view","inputs":[],"outputs":[
		{"name":"reserve0","type":"uint112"},
		{"name":"reserve1","type":"uint112"},
		{"name":"blockTimestampLast","type":"uint32"}]},
	{"type":"function","name":"token0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"token1","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// PairABI is the minimal ABI of a liquidity pair.
var PairABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		panic(fmt.Sprintf("parse pair abi: %v", err))
	}
	PairABI = parsed
}

// ErrUnexpectedOutput is returned when a contract call decodes to the wrong types.
var ErrUnexpectedOutput = errors.New("unexpected contract output")

// PairState is one read of a pair contract.
type PairState struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32 // seconds
	Token0             common.Address
	Token1             common.Address
}

// Pair reads a pair contract.
type Pair struct {
	address common.Address
	caller  ethereum.ContractCaller
}

// NewPair creates a reader for the pair at address.
func NewPair(address common.Address, caller ethereum.ContractCaller) *Pair {
	return &Pair{address: address, caller: caller}
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// Address returns the pair contract address.
func (p *Pair) Address() common.Address {
	return p.address
}

// State reads reserves and token slots at the latest block.
func (p *Pair) State(ctx context.Context) (PairState, error) {
	var st PairState

	out, err := p.call(ctx, "getReserves")
	if err != nil {
		return st, err
	}
	if len(out) != 3 {
		return st, fmt.Errorf("getReserves: %w: %d values", ErrUnexpectedOutput, len(out))
	}
	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	ts, ok2 := out[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return st, fmt.Errorf("getReserves: %w", ErrUnexpectedOutput)
	}
	st.Reserve0, st.Reserve1, st.BlockTimestampLast = r0, r1, ts

	if st.Token0, err = p.address0(ctx, "token0"); err != nil {
		return st, err
	}
	if st.Token1, err = p.address0(ctx, "token1"); err != nil {
		return st, err
	}
	return st, nil
}

func (p *Pair) address0(ctx context.Context, method string) (common.Address, error) {
	out, err := p.call(ctx, method)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("%s: %w: %d values", method, ErrUnexpectedOutput, len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: %w", method, ErrUnexpectedOutput)
	}
	return addr, nil
}

func (p *Pair) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := PairABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := p.caller.CallContract(ctx, ethereum.CallMsg{To: &p.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	out, err := PairABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}
