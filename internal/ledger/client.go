// Package ledger talks to the certificate registry contract on an
// Ethereum-compatible node. The Client owns the single process-wide RPC
// connection; Submitter and Verifier layer the two contract operations on top
// of it.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	dErrors "certledger/pkg/domain-errors"
)

// Config holds what the Client needs to reach the registry.
type Config struct {
	RPCURL       string
	ArtifactPath string
}

// Client wraps the node connection and the bound registry contract. It is
// connected once at startup and shared by all workers; all methods are safe
// for concurrent use.
type Client struct {
	rpc          *rpc.Client
	eth          *ethclient.Client
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	chainID      *big.Int
	log          *slog.Logger
}

// Dial connects to the node, loads the deployment artifact, and probes the
// chain so an unreachable node fails the process at startup rather than on
// the first request.
func Dial(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	art, contractABI, err := LoadArtifact(cfg.ArtifactPath)
	if err != nil {
		return nil, err
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConnectivity, "dial ledger node")
	}
	eth := ethclient.NewClient(rpcClient)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, dErrors.Wrap(err, dErrors.CodeConnectivity, "ledger node unreachable")
	}

	addr := common.HexToAddress(art.Address)
	contract := bind.NewBoundContract(addr, contractABI, eth, eth, eth)

	log.Info("connected to ledger",
		"chain_id", chainID.String(),
		"contract", addr.Hex(),
	)

	return &Client{
		rpc:          rpcClient,
		eth:          eth,
		contract:     contract,
		contractABI:  contractABI,
		contractAddr: addr,
		chainID:      chainID,
		log:          log,
	}, nil
}

// ChainID returns the identity of the connected network.
func (c *Client) ChainID() *big.Int { return c.chainID }

// ContractAddress returns the registry contract's address.
func (c *Client) ContractAddress() common.Address { return c.contractAddr }

// Call performs a read-only contract call. No state change, no cost.
func (c *Client) Call(ctx context.Context, out *[]any, method string, args ...any) error {
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, out, method, args...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConnectivity, fmt.Sprintf("contract call %s", method))
	}
	return nil
}

// Transact builds, signs (via opts.Signer), and broadcasts a mutating
// contract call.
func (c *Client) Transact(opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error) {
	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSubmission, fmt.Sprintf("transact %s", method))
	}
	return tx, nil
}

// PackInput ABI-encodes a contract method call for delegated submission.
func (c *Client) PackInput(method string, args ...any) ([]byte, error) {
	data, err := c.contractABI.Pack(method, args...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSubmission, fmt.Sprintf("pack %s input", method))
	}
	return data, nil
}

// PendingNonceAt returns the next sequence number for an address, including
// transactions still in the mempool.
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeConnectivity, "fetch pending nonce")
	}
	return nonce, nil
}

// NodeAccount returns the node's first unlocked account, used in delegated
// mode when no local signing credential is configured.
func (c *Client) NodeAccount(ctx context.Context) (common.Address, error) {
	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Address{}, dErrors.Wrap(err, dErrors.CodeConnectivity, "list node accounts")
	}
	if len(accounts) == 0 {
		return common.Address{}, dErrors.New(dErrors.CodeSubmission, "node exposes no unlocked account for delegated signing")
	}
	return accounts[0], nil
}

// SendDelegated asks the node to sign and broadcast a registry call from one
// of its own unlocked accounts.
func (c *Client) SendDelegated(ctx context.Context, from common.Address, data []byte, gas uint64, gasPrice *big.Int) (common.Hash, error) {
	call := map[string]any{
		"from":     from,
		"to":       c.contractAddr,
		"gas":      hexutil.Uint64(gas),
		"gasPrice": (*hexutil.Big)(gasPrice),
		"data":     hexutil.Bytes(data),
	}
	var txHash common.Hash
	if err := c.rpc.CallContext(ctx, &txHash, "eth_sendTransaction", call); err != nil {
		return common.Hash{}, dErrors.Wrap(err, dErrors.CodeSubmission, "delegated send rejected")
	}
	return txHash, nil
}

// ReceiptByHash returns the mined receipt for a transaction, or
// ethereum.NotFound while it is still pending.
func (c *Client) ReceiptByHash(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.eth.TransactionReceipt(ctx, hash)
}

// Close tears down the node connection.
func (c *Client) Close() {
	c.rpc.Close()
}
