package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_USER", "layout")
	t.Setenv("DB_PASSWORD", "p@ss")
	t.Setenv("DB_NAME", "doclayout")
	t.Setenv("DB_SSLMODE", "")

	assert.Equal(t, "postgres://layout:p%40ss@db:5432/doclayout?sslmode=disable", DSNFromEnv())
}
