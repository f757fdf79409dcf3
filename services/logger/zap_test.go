package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/soko/core/user"
)

func TestZapLogger(t *testing.T) {
	zcore, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(zcore))

	usr := user.User{ID: "u1", Username: "jdoe"}
	logger.Error("generating report", errors.New("boom"), usr, map[string]interface{}{"report_id": "r1"}, 42)
	logger.Info("schedules run", map[string]interface{}{"ran": 3})

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, zap.ErrorLevel, first.Level)
	assert.Equal(t, "generating report", first.Message)
	ctx := first.ContextMap()
	assert.Contains(t, ctx["error"], "boom")
	assert.Equal(t, "u1", ctx["user_id"])
	assert.Equal(t, "jdoe", ctx["username"])
	assert.Equal(t, "r1", ctx["report_id"])
	assert.EqualValues(t, 42, ctx["arg3"])

	assert.Equal(t, zap.InfoLevel, entries[1].Level)
	assert.EqualValues(t, 3, entries[1].ContextMap()["ran"])
}
