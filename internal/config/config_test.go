package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMap(t *testing.T) {
	a := AuthConfig{Keys: "key-1=web-client, key-2=mobile-client,bare-key"}

	keys := a.KeyMap()
	assert.Equal(t, "web-client", keys["key-1"])
	assert.Equal(t, "mobile-client", keys["key-2"])
	assert.Equal(t, "client", keys["bare-key"])
}

func TestBrokerList(t *testing.T) {
	assert.Nil(t, KafkaConfig{}.BrokerList())
	assert.False(t, KafkaConfig{}.Enabled())

	k := KafkaConfig{Brokers: "localhost:9092, localhost:9093"}
	assert.True(t, k.Enabled())
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, k.BrokerList())
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{RecordsDir: "data/prescriptions", LearningDir: "data/learning", IndexLimit: 1000},
		Gemini:  GeminiConfig{Model: "gemini-1.5-flash"},
	}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Storage.IndexLimit = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Gemini.Model = ""
	assert.Error(t, bad.Validate())
}
