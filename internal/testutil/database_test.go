package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
)

func TestSeedDatabase_ReopensReadOnly(t *testing.T) {
	path := SeedDatabase(t, `CREATE TABLE t (v TEXT); INSERT INTO t VALUES ('a'), ('b');`)

	st, err := store.Open(path, store.Options{ReadOnly: true})
	require.NoError(t, err)
	defer st.Close()

	rs, err := st.ExecuteRaw(context.Background(), "SELECT v FROM t ORDER BY v", nil, 10)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, ir.Text("b"), rs.Rows[1].Get("v"))
}
