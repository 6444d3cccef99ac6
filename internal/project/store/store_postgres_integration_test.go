//go:build integration

package store

import (
	"context"
	"testing"

	"carbonregistry/pkg/testutil/containers"

	"github.com/stretchr/testify/require"
)

func TestPostgresStoreContract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)

	runLedgerStoreContract(t, func(t *testing.T) ledgerStore {
		require.NoError(t, pg.TruncateTables(context.Background(), "project_audit", "projects"))
		return NewPostgres(pg.DB)
	})
}
