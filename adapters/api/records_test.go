package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecords(t *testing.T) {
	body := []byte(`{"data": [
		{"id": "a", "y": 1.5, "ok": true},
		{"id": "b", "note": "late", "y": null}
	]}`)
	records, err := ParseRecords(body, "data")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "note", "ok", "y"},
		{"a", "", "true", "1.5"},
		{"b", "late", "", ""},
	}, records)
}

func TestParseRecordsSingleObjectAndRoot(t *testing.T) {
	records, err := ParseRecords([]byte(`{"id": "a", "y": 2}`), "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "y"}, {"a", "2"}}, records)

	records, err = ParseRecords([]byte(`[{"y": 1}, {"y": 2}]`), ".")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestParseRecordsErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		body string
		path string
	}{
		"invalid json":   {`{"data": [`, "data"},
		"missing path":   {`{"data": []}`, "items"},
		"scalar":         {`{"data": 3}`, "data"},
		"row not object": {`{"data": [1, 2]}`, "data"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRecords([]byte(tc.body), tc.path)
			assert.Error(t, err)
		})
	}
}
