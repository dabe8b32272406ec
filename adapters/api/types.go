package api

import (
	"encoding/json"

	"gocompare/domain/variable"
)

// DataSpec names the dataset of a request. Exactly one of Records, Rows or
// Table is used, in that order of precedence.
type DataSpec struct {
	// Records is a header-first table of raw values.
	Records [][]string `json:"records,omitempty"`
	// Rows is a JSON document holding row objects at Path.
	Rows json.RawMessage `json:"rows,omitempty"`
	Path string          `json:"path,omitempty"`
	// Table reads a SQL table ordered by OrderBy, when the server has a database.
	Table   string `json:"table,omitempty"`
	OrderBy string `json:"order_by,omitempty"`
}

// BatchRequest is the body of POST /v1/batches and POST /v1/plans.
type BatchRequest struct {
	Mode     string                   `json:"mode"`
	Contract variable.DatasetContract `json:"contract"`
	Data     DataSpec                 `json:"data"`

	// Suggestions is an optional variable-role suggestion document merged
	// into Contract before validation.
	Suggestions    json.RawMessage `json:"suggestions,omitempty"`
	SuggestionPath string          `json:"suggestion_path,omitempty"`
	MinConfidence  float64         `json:"min_confidence,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
