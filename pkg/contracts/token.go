package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	parsedERC20  = mustParse(erc20ABI)
	parsedCToken = mustParse(cTokenABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid contract ABI: %v", err))
	}
	return parsed
}

// Token is a handle on an ERC-20 contract bound to a backend and, for writes, a signer
// supplied per transaction.
type Token struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewToken binds an ERC-20 token at address.
func NewToken(address common.Address, backend bind.ContractBackend) *Token {
	return newToken(address, parsedERC20, backend, backend)
}

func newToken(address common.Address, parsed abi.ABI, caller bind.ContractCaller, transactor bind.ContractTransactor) *Token {
	return &Token{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, caller, transactor, nil),
	}
}

// Address returns the contract address
func (t *Token) Address() common.Address {
	return t.address
}

// BalanceOf returns the raw balance of owner.
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", owner)
}

// Allowance returns how much spender may transfer on behalf of owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(ctx, "allowance", owner, spender)
}

// Decimals returns the token's decimal exponent.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Symbol returns the token ticker.
func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := t.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// Approve authorizes spender to transfer up to amount. The transaction is sent but
// not awaited.
func (t *Token) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	tx, err := t.contract.Transact(opts, "approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to send approve: %w", err)
	}
	return tx, nil
}

func (t *Token) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("failed to call %s on %s: %w", method, t.address.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result from %s on %s", method, t.address.Hex())
	}
	return out, nil
}

func (t *Token) callBig(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	out, err := t.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
