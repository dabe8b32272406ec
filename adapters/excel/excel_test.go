package excel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var records = [][]string{
	{"subject_id", "arm", "hb_t0", "hb_t1"},
	{"s1", "drug", "12.5", "13.1"},
	{"s2", "placebo", "", "12"},
	{"s3", "drug", "11.9", "12.7"},
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	for _, ext := range []string{".csv", ".xlsx"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "trial"+ext)
			require.NoError(t, WriteRecords(path, records))

			frame, err := NewDataReader(path).ReadFrame()
			require.NoError(t, err)
			assert.Equal(t, []string{"subject_id", "arm", "hb_t0", "hb_t1"}, frame.Columns())
			assert.Equal(t, 3, frame.Len())

			s, err := frame.Column(context.Background(), "hb_t0")
			require.NoError(t, err)
			assert.Equal(t, 12.5, s.Cells[0].Number)
			assert.True(t, s.Cells[1].Missing)
		})
	}
}

func TestReadFrameErrors(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "missing.csv")).ReadFrame()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "header.csv")
	require.NoError(t, WriteRecords(path, records[:1]))
	_, err = NewDataReader(path).ReadFrame()
	assert.Error(t, err)

	xlsx := filepath.Join(t.TempDir(), "trial.xlsx")
	require.NoError(t, WriteRecords(xlsx, records))
	_, err = NewDataReader(xlsx).WithSheet("Other").ReadFrame()
	assert.Error(t, err)
}

func TestDetectSubjectColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trial.csv")
	require.NoError(t, WriteRecords(path, records))
	frame, err := NewDataReader(path).ReadFrame()
	require.NoError(t, err)

	col, err := DetectSubjectColumn(frame)
	require.NoError(t, err)
	assert.Equal(t, "subject_id", col)
}
