package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Market is a handle on a Compound cToken market. It is itself an ERC-20, so it
// embeds Token for the reads.
type Market struct {
	*Token
}

// NewMarket binds a cToken market at address.
func NewMarket(address common.Address, backend bind.ContractBackend) *Market {
	return newMarket(address, backend, backend)
}

func newMarket(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor) *Market {
	return &Market{Token: newToken(address, parsedCToken, caller, transactor)}
}

// Mint supplies amount of the underlying token into the market. The market must
// already hold an allowance for at least amount.
func (m *Market) Mint(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	tx, err := m.contract.Transact(opts, "mint", amount)
	if err != nil {
		return nil, fmt.Errorf("failed to send mint: %w", err)
	}
	return tx, nil
}

// Underlying returns the address of the token the market accepts.
func (m *Market) Underlying(ctx context.Context) (common.Address, error) {
	out, err := m.call(ctx, "underlying")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// ExchangeRateStored returns the cToken to underlying exchange rate scaled by
// 1e(18 + underlyingDecimals - cTokenDecimals).
func (m *Market) ExchangeRateStored(ctx context.Context) (*big.Int, error) {
	return m.callBig(ctx, "exchangeRateStored")
}
