package ledger

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The registry ABI ships embedded so a deployment artifact only needs to
// carry the contract address. An artifact that includes its own abi section
// (hardhat output does) takes precedence.
//
//go:embed registry_abi.json
var embeddedArtifactJSON []byte

var (
	embeddedABI     abi.ABI
	embeddedABIOnce sync.Once
	errEmbeddedABI  error
)

// Artifact is the deployment artifact written by the contract deployment
// script: the registry's on-chain address plus, optionally, its ABI.
type Artifact struct {
	Address string          `json:"address"`
	ABI     json.RawMessage `json:"abi"`
}

// LoadArtifact reads a deployment artifact from disk and resolves its ABI,
// falling back to the embedded registry ABI when the file does not carry one.
func LoadArtifact(path string) (Artifact, abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, abi.ABI{}, fmt.Errorf("read contract artifact: %w", err)
	}

	var art Artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return Artifact{}, abi.ABI{}, fmt.Errorf("unmarshal contract artifact: %w", err)
	}
	if art.Address == "" {
		return Artifact{}, abi.ABI{}, fmt.Errorf("contract artifact %s has no address", path)
	}

	if len(art.ABI) == 0 || string(art.ABI) == "null" {
		parsed, err := loadEmbeddedABI()
		if err != nil {
			return Artifact{}, abi.ABI{}, err
		}
		return art, parsed, nil
	}

	parsed, err := abi.JSON(strings.NewReader(string(art.ABI)))
	if err != nil {
		return Artifact{}, abi.ABI{}, fmt.Errorf("parse artifact ABI: %w", err)
	}
	return art, parsed, nil
}

// loadEmbeddedABI parses the embedded registry ABI exactly once.
func loadEmbeddedABI() (abi.ABI, error) {
	embeddedABIOnce.Do(func() {
		var art Artifact
		if err := json.Unmarshal(embeddedArtifactJSON, &art); err != nil {
			errEmbeddedABI = fmt.Errorf("unmarshal embedded artifact: %w", err)
			return
		}
		embeddedABI, errEmbeddedABI = abi.JSON(strings.NewReader(string(art.ABI)))
	})
	return embeddedABI, errEmbeddedABI
}
