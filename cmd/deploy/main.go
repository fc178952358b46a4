// Command deploy publishes the certificate registry contract and writes the
// deployment artifact the server loads at startup.
//
// The contract is compiled ahead of time:
//
//	solc --combined-json abi,bin contracts/Certificate.sol > build/Certificate.json
//
// With DEPLOYER_PRIVATE_KEY set the deployment transaction is signed locally;
// otherwise the node's first unlocked account is asked to sign.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"certledger/internal/platform/logger"
)

const deployGasLimit = 4_000_000

// 20 gwei.
var deployGasPrice = big.NewInt(20_000_000_000)

func main() {
	artifactPath := flag.String("artifact", "build/Certificate.json", "compiled contract artifact (solc combined-json)")
	outPath := flag.String("out", "contract_abi.json", "where to write the deployment artifact")
	flag.Parse()

	log := logger.New()
	if err := run(context.Background(), *artifactPath, *outPath); err != nil {
		log.Error("deployment failed", "error", err.Error())
		os.Exit(1)
	}
	log.Info("deployment artifact written", "path", *outPath)
}

func run(ctx context.Context, artifactPath, outPath string) error {
	abiJSON, bytecode, err := loadCompiled(artifactPath)
	if err != nil {
		return err
	}

	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		rpcURL = "http://127.0.0.1:8545"
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	defer rpcClient.Close()
	eth := ethclient.NewClient(rpcClient)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("ledger node unreachable: %w", err)
	}

	var hash common.Hash
	if key := os.Getenv("DEPLOYER_PRIVATE_KEY"); key != "" {
		hash, err = deploySigned(ctx, eth, chainID, key, bytecode)
	} else {
		hash, err = deployDelegated(ctx, rpcClient, bytecode)
	}
	if err != nil {
		return err
	}

	receipt, err := waitReceipt(ctx, eth, hash)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("deployment transaction %s reverted", hash.Hex())
	}

	out, err := json.MarshalIndent(struct {
		Address string          `json:"address"`
		ABI     json.RawMessage `json:"abi"`
	}{
		Address: receipt.ContractAddress.Hex(),
		ABI:     abiJSON,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, append(out, '\n'), 0o644)
}

// loadCompiled reads a solc combined-json artifact and returns the ABI and
// creation bytecode of the single contract it contains.
func loadCompiled(path string) (json.RawMessage, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read compiled artifact: %w", err)
	}

	var combined struct {
		Contracts map[string]struct {
			ABI json.RawMessage `json:"abi"`
			Bin string          `json:"bin"`
		} `json:"contracts"`
	}
	if err := json.Unmarshal(raw, &combined); err != nil {
		return nil, nil, fmt.Errorf("parse compiled artifact: %w", err)
	}
	if len(combined.Contracts) != 1 {
		return nil, nil, fmt.Errorf("expected exactly one contract in %s, found %d", path, len(combined.Contracts))
	}

	for name, c := range combined.Contracts {
		bin := strings.TrimPrefix(strings.TrimSpace(c.Bin), "0x")
		bytecode, err := hexutil.Decode("0x" + bin)
		if err != nil {
			return nil, nil, fmt.Errorf("decode bytecode of %s: %w", name, err)
		}
		if len(bytecode) == 0 {
			return nil, nil, fmt.Errorf("contract %s has empty bytecode", name)
		}
		return c.ABI, bytecode, nil
	}
	return nil, nil, errors.New("unreachable")
}

func deploySigned(ctx context.Context, eth *ethclient.Client, chainID *big.Int, keyHex string, bytecode []byte) (common.Hash, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse signing credential: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		Gas:      deployGasLimit,
		GasPrice: deployGasPrice,
		Data:     bytecode,
	})
	signer := types.NewEIP155Signer(chainID)
	sig, err := crypto.Sign(signer.Hash(tx).Bytes(), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign deployment: %w", err)
	}
	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return common.Hash{}, err
	}
	if err := eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast deployment: %w", err)
	}
	return signed.Hash(), nil
}

func deployDelegated(ctx context.Context, rpcClient *rpc.Client, bytecode []byte) (common.Hash, error) {
	var accounts []common.Address
	if err := rpcClient.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Hash{}, fmt.Errorf("list node accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Hash{}, errors.New("node exposes no unlocked accounts and no signing credential is configured")
	}

	var hash common.Hash
	err := rpcClient.CallContext(ctx, &hash, "eth_sendTransaction", map[string]any{
		"from":     accounts[0],
		"data":     hexutil.Bytes(bytecode),
		"gas":      hexutil.Uint64(deployGasLimit),
		"gasPrice": (*hexutil.Big)(deployGasPrice),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("delegated deployment: %w", err)
	}
	return hash, nil
}

func waitReceipt(ctx context.Context, eth *ethclient.Client, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("poll deployment receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
