package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_sqliteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{dsn: "file:soko.db", want: "file:soko.db?_pragma=foreign_keys(1)"},
		{dsn: "file::memory:?_time_format=sqlite", want: "file::memory:?_time_format=sqlite&_pragma=foreign_keys(1)"},
		{dsn: "file:soko.db?_pragma=foreign_keys(0)", want: "file:soko.db?_pragma=foreign_keys(0)"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.dsn))
		})
	}
}

func TestOpenSQLite_foreignKeysOnEveryConnection(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "soko.db") + "?_time_format=sqlite"
	db, err := OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	conn1, err := db.Connx(ctx)
	require.NoError(t, err)
	defer conn1.Close()
	conn2, err := db.Connx(ctx)
	require.NoError(t, err)
	defer conn2.Close()

	for i, conn := range []interface {
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}{conn1, conn2} {
		var enabled int
		require.NoError(t, conn.GetContext(ctx, &enabled, "PRAGMA foreign_keys"))
		assert.Equal(t, 1, enabled, "connection %d", i+1)
	}
}
