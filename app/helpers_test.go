package app

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"gocompare/adapters/memory"
	"gocompare/internal"
)

func quietLogger() *internal.Logger {
	return internal.NewLoggerTo(internal.LogLevelError, io.Discard)
}

func frame(t *testing.T, records [][]string) *memory.Frame {
	t.Helper()
	f, err := memory.FromRecords(records)
	require.NoError(t, err)
	return f
}
