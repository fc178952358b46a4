package config

import (
	"os"
	"strings"
	"time"

	platformstrings "certledger/pkg/platform/strings"
)

// Config captures everything the server needs from the environment. Optional
// backends (redis, postgres, kafka) are enabled by presence of their setting.
type Config struct {
	Addr string

	// Ledger connectivity.
	RPCURL           string
	ContractArtifact string
	// PrivateKey selects signed mode when set. Held in memory only; never
	// logged or serialized.
	PrivateKey string

	// Certificate artifacts.
	CertDir string

	// SubmitTimeout bounds the wait for transaction confirmation. On expiry
	// the issuance reports a pending outcome; the broadcast is not cancelled.
	SubmitTimeout time.Duration

	// Optional backends.
	RedisURL       string
	DatabaseURL    string
	KafkaBrokers   []string
	VerifyCacheTTL time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:             getenv("CERTLEDGER_ADDR", ":8080"),
		RPCURL:           getenv("RPC_URL", "http://127.0.0.1:8545"),
		ContractArtifact: getenv("CONTRACT_ARTIFACT", "contract_abi.json"),
		PrivateKey:       os.Getenv("DEPLOYER_PRIVATE_KEY"),
		CertDir:          getenv("CERT_DIR", "static/certificates"),
		SubmitTimeout:    getduration("SUBMIT_TIMEOUT", 90*time.Second),
		RedisURL:         os.Getenv("REDIS_URL"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		VerifyCacheTTL:   getduration("VERIFY_CACHE_TTL", 5*time.Minute),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
