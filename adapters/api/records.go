package api

import (
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// ParseRecords extracts header-first records from a JSON document. dataPath
// selects an array of row objects, or a single object ("." or empty for the
// document root). The header is the sorted union of keys; absent and null
// values become empty (missing) cells.
func ParseRecords(body []byte, dataPath string) ([][]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("rows are not valid JSON")
	}
	var data gjson.Result
	if dataPath == "" || dataPath == "." {
		data = gjson.ParseBytes(body)
	} else {
		data = gjson.GetBytes(body, dataPath)
	}
	if !data.Exists() {
		return nil, fmt.Errorf("data path '%s' not found in rows", dataPath)
	}

	var objects []gjson.Result
	switch {
	case data.IsArray():
		objects = data.Array()
	case data.IsObject():
		objects = []gjson.Result{data}
	default:
		return nil, fmt.Errorf("data path '%s' is not an array or object", dataPath)
	}

	seen := make(map[string]bool)
	var header []string
	for i, obj := range objects {
		if !obj.IsObject() {
			return nil, fmt.Errorf("row %d is not an object", i+1)
		}
		obj.ForEach(func(key, _ gjson.Result) bool {
			if !seen[key.String()] {
				seen[key.String()] = true
				header = append(header, key.String())
			}
			return true
		})
	}
	sort.Strings(header)

	records := make([][]string, 0, len(objects)+1)
	records = append(records, header)
	index := make(map[string]int, len(header))
	for j, key := range header {
		index[key] = j
	}
	for _, obj := range objects {
		row := make([]string, len(header))
		obj.ForEach(func(key, value gjson.Result) bool {
			if value.Type != gjson.Null {
				row[index[key.String()]] = value.String()
			}
			return true
		})
		records = append(records, row)
	}
	return records, nil
}
