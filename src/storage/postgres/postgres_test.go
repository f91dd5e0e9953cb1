package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionStrings(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", DB: "docs"}
	assert.Equal(t, "host=db user=u password=p dbname=docs port=5432 sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://u:p@db:5432/docs?sslmode=disable", cfg.URL())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.URL(), "sslmode=require")
}
