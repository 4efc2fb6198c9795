package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lumenqi/lumen-core/pkg/storage/postgres"
)

func TestConfig_DSN(t *testing.T) {
	cfg := &postgres.Config{Host: "db", Port: 5432, User: "lumen", Password: "pw", DBName: "lumen"}
	assert.Equal(t, "host=db port=5432 user=lumen password=pw dbname=lumen sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}
