package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPCURL)
	assert.Equal(t, "contract_abi.json", cfg.ContractArtifact)
	assert.Equal(t, "static/certificates", cfg.CertDir)
	assert.Equal(t, 90*time.Second, cfg.SubmitTimeout)
	assert.Empty(t, cfg.PrivateKey)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CERTLEDGER_ADDR", ":9090")
	t.Setenv("RPC_URL", "http://node:8545")
	t.Setenv("SUBMIT_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092 ,kafka-2:9092,kafka-1:9092,")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "http://node:8545", cfg.RPCURL)
	assert.Equal(t, 30*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestFromEnv_BadDurationFallsBack(t *testing.T) {
	t.Setenv("SUBMIT_TIMEOUT", "ninety seconds")
	cfg := FromEnv()
	assert.Equal(t, 90*time.Second, cfg.SubmitTimeout)
}
