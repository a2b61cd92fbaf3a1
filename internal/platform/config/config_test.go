package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMemoryDefaults(t *testing.T) {
	t.Setenv("DB_TYPE", "memory")
	t.Setenv("ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.NotificationStore)
	assert.Equal(t, 24*time.Hour, cfg.JWTAccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTRefreshTTL)
	assert.Equal(t, time.Minute, cfg.OrderAutoConfirmAfter)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NotEmpty(t, cfg.InternalAPIKey)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("DB_TYPE", "mongo")
	t.Setenv("MONGO_URI", "")
	t.Setenv("MONGODB_URI", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadProdRequiresSecrets(t *testing.T) {
	t.Setenv("DB_TYPE", "memory")
	t.Setenv("ENV", "prod")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "same")
	t.Setenv("JWT_REFRESH_SECRET", "same")
	t.Setenv("INTERNAL_API_KEY", "k")
	_, err = Load()
	require.Error(t, err, "access and refresh secrets must differ")
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	assert.Equal(t, []string{"a:9092", "b:9092"}, getEnvAsSlice("KAFKA_BROKERS", nil))

	t.Setenv("KAFKA_BROKERS", " , ")
	assert.Nil(t, getEnvAsSlice("KAFKA_BROKERS", nil))
}
