package dapp

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dai-supply/pkg/contracts"
	"dai-supply/pkg/history"
	"dai-supply/pkg/journal"
)

// Wallet is what the session needs from a signer: account discovery, network
// identification and sending transactions.
type Wallet interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Backend() bind.ContractBackend
	Transactor(ctx context.Context) (*bind.TransactOpts, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Token is an ERC-20 handle.
type Token interface {
	Address() common.Address
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Decimals(ctx context.Context) (uint8, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

// Market is a lending market handle that accepts the underlying Token.
type Market interface {
	Token
	Mint(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error)
	Underlying(ctx context.Context) (common.Address, error)
	ExchangeRateStored(ctx context.Context) (*big.Int, error)
}

// Binder builds both contract handles against a wallet's backend.
type Binder func(backend bind.ContractBackend) (Token, Market)

// HistorySource looks up an account's transaction history.
type HistorySource interface {
	TxList(ctx context.Context, address common.Address) ([]history.Tx, error)
}

// Recorder journals sent transactions.
type Recorder interface {
	Record(kind journal.Kind, hash common.Hash, account common.Address, amount string) (*journal.Entry, error)
	Resolve(id string, receipt *types.Receipt) error
	Fail(id string, reason error) error
}

// ContractBinder binds the go-ethereum token and market handles at fixed addresses.
func ContractBinder(token, market common.Address) Binder {
	return func(backend bind.ContractBackend) (Token, Market) {
		return contracts.NewToken(token, backend), contracts.NewMarket(market, backend)
	}
}
