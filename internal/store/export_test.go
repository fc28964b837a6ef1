package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TruncatePostgres empties the postgres table between conformance subtests.
func TruncatePostgres(t *testing.T, p *PostgresStore) {
	_, err := p.pool.Exec(context.Background(), `TRUNCATE documents`)
	require.NoError(t, err)
}

// Held reports how many document ids currently have a lock entry.
func (l *Locks) Held() int { return l.held() }
