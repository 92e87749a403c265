package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tilsley/scmreader/apps/server/internal/platform/postgres"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@db:5432/scm?sslmode=disable", "pgx5://u:p@db:5432/scm?sslmode=disable"},
		{"postgresql://u@db/scm", "pgx5://u@db/scm"},
		{"pgx5://u@db/scm", "pgx5://u@db/scm"},
		{"host=db user=u", "host=db user=u"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, postgres.MigrateURL(tt.in), tt.in)
	}
}
