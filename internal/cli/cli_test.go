package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/service"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "reconcile"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestReconcileOnMemoryStore(t *testing.T) {
	t.Setenv("EWM_DATABASE_DRIVER", "memory")
	t.Setenv("EWM_LOGGING_LEVEL", "disabled")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"reconcile"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, Execute())

	var report service.ReconcileReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 0, report.Checked)
	assert.Empty(t, report.Repaired)
}

func TestMigrateNeedsPostgres(t *testing.T) {
	t.Setenv("EWM_DATABASE_DRIVER", "memory")
	t.Setenv("EWM_LOGGING_LEVEL", "disabled")

	rootCmd.SetArgs([]string{"migrate"})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	})

	err := Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
