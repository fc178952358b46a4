package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"certledger/internal/certificate/models"
	dErrors "certledger/pkg/domain-errors"
)

const (
	// Fixed resource limits for registry writes; the contract's issuance
	// path is small and predictable enough that estimation is not worth a
	// round trip.
	issueGasLimit = 400000

	receiptPollInterval = 500 * time.Millisecond
)

// 20 gwei.
var defaultGasPrice = big.NewInt(20_000_000_000)

// Backend is the slice of the ledger Client the Submitter needs. Tests
// substitute a fake.
type Backend interface {
	ChainID() *big.Int
	Transact(opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error)
	PackInput(method string, args ...any) ([]byte, error)
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	NodeAccount(ctx context.Context) (common.Address, error)
	SendDelegated(ctx context.Context, from common.Address, data []byte, gas uint64, gasPrice *big.Int) (common.Hash, error)
	ReceiptByHash(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Submitter broadcasts registry writes and blocks until they confirm.
//
// It runs in one of two modes, fixed at construction: signed mode holds a
// local ECDSA credential and signs EIP-155 transactions itself; delegated
// mode asks the node to sign from its own unlocked account. In signed mode,
// nonce assignment and broadcast are serialized under a per-credential mutex
// so concurrent submissions never collide; unrelated work (the confirmation
// wait) happens outside the lock.
type Submitter struct {
	backend  Backend
	key      *ecdsa.PrivateKey // nil in delegated mode; never logged
	from     common.Address
	gasLimit uint64
	gasPrice *big.Int
	poll     time.Duration
	log      *slog.Logger

	nonceMu sync.Mutex

	delegatedOnce sync.Once
	delegatedFrom common.Address
	delegatedErr  error
}

// NewSubmitter builds a Submitter. An empty privKeyHex selects delegated
// mode.
func NewSubmitter(backend Backend, privKeyHex string, log *slog.Logger) (*Submitter, error) {
	s := &Submitter{
		backend:  backend,
		gasLimit: issueGasLimit,
		gasPrice: defaultGasPrice,
		poll:     receiptPollInterval,
		log:      log,
	}
	if privKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privKeyHex, "0x"))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeSubmission, "parse signing credential")
		}
		s.key = key
		s.from = crypto.PubkeyToAddress(key.PublicKey)
		log.Info("submitter in signed mode", "from", s.from.Hex())
	} else {
		log.Info("submitter in delegated mode")
	}
	return s, nil
}

// Signed reports whether a local signing credential is held.
func (s *Submitter) Signed() bool { return s.key != nil }

// From returns the submission address. In delegated mode it is only known
// after the first submission resolves the node account.
func (s *Submitter) From() common.Address {
	if s.key != nil {
		return s.from
	}
	return s.delegatedFrom
}

// IssueCertificate writes a certificate record to the registry and waits for
// confirmation.
func (s *Submitter) IssueCertificate(ctx context.Context, rec models.CertificateRecord) (models.TransactionReceipt, error) {
	return s.Submit(ctx, "issueCertificate", rec.ID, rec.Student, rec.Course, rec.Institution, rec.IntegrityTag)
}

// Submit broadcasts a mutating registry call and blocks until it reaches a
// mined receipt or the context expires. On context expiry the returned error
// carries CodePending and the receipt carries the broadcast hash: the
// transaction is not cancelled and may still confirm.
func (s *Submitter) Submit(ctx context.Context, method string, args ...any) (models.TransactionReceipt, error) {
	var (
		hash common.Hash
		err  error
	)
	if s.key != nil {
		hash, err = s.submitSigned(ctx, method, args...)
	} else {
		hash, err = s.submitDelegated(ctx, method, args...)
	}
	if err != nil {
		return models.TransactionReceipt{}, err
	}
	return s.waitMined(ctx, hash)
}

func (s *Submitter) submitSigned(ctx context.Context, method string, args ...any) (common.Hash, error) {
	// The mutex covers nonce fetch through broadcast: two concurrent
	// submissions from the same credential must observe strictly increasing
	// sequence numbers.
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()

	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, err
	}

	opts := &bind.TransactOpts{
		From:     s.from,
		Nonce:    new(big.Int).SetUint64(nonce),
		Value:    big.NewInt(0),
		GasLimit: s.gasLimit,
		GasPrice: s.gasPrice,
		Signer:   s.signTx,
		Context:  ctx,
	}
	tx, err := s.backend.Transact(opts, method, args...)
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// signTx signs with the local credential using the active chain identity.
func (s *Submitter) signTx(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
	if addr != s.from {
		return nil, errors.New("unexpected sender address")
	}
	signer := types.NewEIP155Signer(s.backend.ChainID())
	sig, err := crypto.Sign(signer.Hash(tx).Bytes(), s.key)
	if err != nil {
		return nil, err
	}
	return tx.WithSignature(signer, sig)
}

func (s *Submitter) submitDelegated(ctx context.Context, method string, args ...any) (common.Hash, error) {
	s.delegatedOnce.Do(func() {
		s.delegatedFrom, s.delegatedErr = s.backend.NodeAccount(ctx)
	})
	if s.delegatedErr != nil {
		return common.Hash{}, s.delegatedErr
	}

	data, err := s.backend.PackInput(method, args...)
	if err != nil {
		return common.Hash{}, err
	}
	return s.backend.SendDelegated(ctx, s.delegatedFrom, data, s.gasLimit, s.gasPrice)
}

// waitMined polls for the receipt until mined or the context expires.
func (s *Submitter) waitMined(ctx context.Context, hash common.Hash) (models.TransactionReceipt, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.ReceiptByHash(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return models.TransactionReceipt{TxHash: hash.Hex()},
					dErrors.Newf(dErrors.CodeSubmission, "transaction %s reverted on-ledger", hash.Hex())
			}
			return models.TransactionReceipt{
				TxHash:      hash.Hex(),
				BlockNumber: receipt.BlockNumber.Uint64(),
				Confirmed:   true,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			return models.TransactionReceipt{TxHash: hash.Hex()},
				dErrors.Wrap(err, dErrors.CodeConnectivity, "poll transaction receipt")
		}

		select {
		case <-ctx.Done():
			// Unknown, not failed: the broadcast is not cancellable.
			return models.TransactionReceipt{TxHash: hash.Hex()},
				dErrors.Wrap(ctx.Err(), dErrors.CodePending, "confirmation still pending")
		case <-ticker.C:
		}
	}
}
