package testkit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocompare/adapters/excel"
)

func TestTrialGenerator_Deterministic(t *testing.T) {
	cfg := DefaultTrialConfig()
	a := NewTrialGenerator(cfg).Records()
	b := NewTrialGenerator(cfg).Records()
	assert.Equal(t, a, b)

	cfg.Seed = 7
	c := NewTrialGenerator(cfg).Records()
	assert.NotEqual(t, a, c)
}

func TestTrialGenerator_Shape(t *testing.T) {
	cfg := DefaultTrialConfig()
	gen := NewTrialGenerator(cfg)
	records := gen.Records()

	require.Len(t, records, 1+2*cfg.SubjectsPerArm)
	assert.Equal(t, []string{"subject", "arm", "site", "age", "responder", "severity", "hb_t0", "hb_t1", "hb_t2", "hb_t3"}, records[0])
	for _, r := range records[1:] {
		assert.Len(t, r, len(records[0]))
	}

	contract := gen.Contract()
	require.NoError(t, contract.Validate())
	families := contract.Families()
	require.Len(t, families, 1)
	assert.Equal(t, []string{"t0", "t1", "t2", "t3"}, families[0].Timepoints())
}

func TestTrialGenerator_MissingRate(t *testing.T) {
	cfg := DefaultTrialConfig()
	cfg.MissingRate = 1
	records := NewTrialGenerator(cfg).Records()
	for _, r := range records[1:] {
		assert.NotEqual(t, "NA", r[6], "baseline is always observed")
		assert.Equal(t, "NA", r[7])
	}
}

func TestTrialGenerator_ExportRoundTrip(t *testing.T) {
	gen := NewTrialGenerator(DefaultTrialConfig())
	for _, name := range []string{"trial.csv", "trial.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, gen.Export(path))

			frame, err := excel.NewDataReader(path).ReadFrame()
			require.NoError(t, err)
			n, err := frame.RowCount(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 60, n)

			col, err := frame.Column(context.Background(), "hb_t2")
			require.NoError(t, err)
			assert.True(t, col.Cells[0].Numeric)
		})
	}
}
