package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrNoWallet is returned when no signing key is configured.
var ErrNoWallet = errors.New("no wallet configured")

// Config holds what a key wallet needs to reach the chain and sign.
type Config struct {
	RPCURL     string
	PrivateKey string
	GasLimit   uint64 // zero means estimate
	GasPrice   int64  // wei, zero means ask the node
}

// KeyWallet signs with a local private key and talks to the chain over JSON-RPC.
type KeyWallet struct {
	cfg        Config
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// Open validates the key and connects to the RPC endpoint.
func Open(ctx context.Context, cfg Config) (*KeyWallet, error) {
	if cfg.PrivateKey == "" {
		return nil, ErrNoWallet
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}

	privateKey, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	return &KeyWallet{
		cfg:        cfg,
		client:     client,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// ParsePrivateKey parses a hex encoded secp256k1 key, with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// RequestAccounts returns the accounts this wallet can sign for.
func (w *KeyWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{w.address}, nil
}

// ChainID returns the network the RPC endpoint is serving.
func (w *KeyWallet) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id, nil
}

// Backend exposes the RPC client for contract bindings.
func (w *KeyWallet) Backend() bind.ContractBackend {
	return w.client
}

// Transactor builds signing options for the next transaction.
func (w *KeyWallet) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	chainID, err := w.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(w.privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx

	if w.cfg.GasLimit > 0 {
		opts.GasLimit = w.cfg.GasLimit
	}
	if w.cfg.GasPrice > 0 {
		opts.GasPrice = big.NewInt(w.cfg.GasPrice)
	}

	return opts, nil
}

// WaitMined blocks until tx has a receipt or ctx is done.
func (w *KeyWallet) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, w.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}

// Close closes the client connection
func (w *KeyWallet) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// Receipts looks up transaction receipts over RPC. Unlike KeyWallet it needs no key.
type Receipts struct {
	client *ethclient.Client
}

// DialReceipts connects to the RPC endpoint for receipt lookups.
func DialReceipts(ctx context.Context, rpcURL string) (*Receipts, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	return &Receipts{client: client}, nil
}

// Receipt returns the receipt of hash. A transaction that is not mined yet yields
// ethereum.NotFound.
func (r *Receipts) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return r.client.TransactionReceipt(ctx, hash)
}

// Close closes the client connection
func (r *Receipts) Close() {
	r.client.Close()
}
