package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "  s3cret ")

	cfg := LoadConfig()
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "expense_db", cfg.Database.DBName)
	assert.Equal(t, "local", cfg.Upload.Backend)
	assert.Equal(t, "expense-events", cfg.MQ.ExpenseChannel)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_SSL", "true")
	t.Setenv("RABBITMQ_QUEUE_DURABLE", "not-a-bool")
	t.Setenv("MQ_BACKEND", "rabbitmq")

	cfg := LoadConfig()
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.True(t, cfg.MQ.RabbitMQ.QueueDurable, "invalid bools fall back to the default")
	assert.Equal(t, "rabbitmq", cfg.MQ.Backend)
}

func TestIsDevelopment(t *testing.T) {
	for env, want := range map[string]bool{"dev": true, " Development ": true, "production": false, "": false} {
		assert.Equal(t, want, Config{Env: env}.IsDevelopment(), env)
	}
}
