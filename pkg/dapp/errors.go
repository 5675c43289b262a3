package dapp

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrNoWallet is returned by Connect when there is no wallet to connect to.
	ErrNoWallet = errors.New("no wallet found, please configure a wallet key")
	// ErrConnect is returned when the wallet refuses or fails to hand out an account.
	ErrConnect = errors.New("please connect with your wallet")
	// ErrWrongNetwork is returned when the wallet is on another chain.
	ErrWrongNetwork = errors.New("wrong network")
	// ErrNotConnected is returned by operations that need a connected account.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrInvalidAmount is returned by Supply when the input fails validation.
	ErrInvalidAmount = errors.New("please enter a valid amount")
	// ErrReverted is returned when a transaction is mined with a failed status.
	ErrReverted = errors.New("transaction reverted")
)

// NetworkError carries the expected and actual chain IDs.
type NetworkError struct {
	Expected int64
	Actual   *big.Int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("wrong network: connected to chain %s, expected chain %d", e.Actual, e.Expected)
}

func (e *NetworkError) Unwrap() error {
	return ErrWrongNetwork
}
