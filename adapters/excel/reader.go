// Package excel loads CSV and XLSX files into in-memory frames and writes
// frames back out as workbooks.
package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gocompare/adapters/memory"
)

// DefaultSheet is the worksheet read when none is configured.
const DefaultSheet = "Sheet1"

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, sheet: DefaultSheet}
}

// WithSheet selects the worksheet of an XLSX file.
func (r *DataReader) WithSheet(name string) *DataReader {
	if name != "" {
		r.sheet = name
	}
	return r
}

// ReadFrame reads the file into a frame. The first row is the header.
func (r *DataReader) ReadFrame() (*memory.Frame, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var (
		rows [][]string
		err  error
	)
	start := time.Now()
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	default:
		rows, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row", strings.ToUpper(r.fileType))
	}

	frame, err := memory.FromRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("invalid header in %s: %w", r.filePath, err)
	}
	log.Printf("[DataReader] %s file processed in %.2fms (%d columns, %d rows)",
		strings.ToUpper(r.fileType), float64(time.Since(start).Nanoseconds())/1e6, len(frame.Columns()), frame.Len())
	return frame, nil
}

func (r *DataReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// DetectSubjectColumn proposes the subject identifier column: a common id
// name first, then the first column, provided values are mostly present and
// mostly unique.
func DetectSubjectColumn(frame *memory.Frame) (string, error) {
	records := frame.Records()
	if len(records) < 2 {
		return "", fmt.Errorf("no data rows found")
	}
	headers := records[0]

	commonSubjectColumns := []string{
		"id",
		"subject_id",
		"participant_id",
		"patient_id",
		"record_id",
		"subject",
	}
	for _, name := range commonSubjectColumns {
		for i, h := range headers {
			if strings.ToLower(h) == name && isValidSubjectColumn(records[1:], i) {
				return h, nil
			}
		}
	}
	if isValidSubjectColumn(records[1:], 0) {
		return headers[0], nil
	}
	return "", fmt.Errorf("could not detect a valid subject column")
}

func isValidSubjectColumn(rows [][]string, col int) bool {
	values := make(map[string]bool)
	empty := 0
	for _, r := range rows {
		if col >= len(r) || r[col] == "" {
			empty++
			continue
		}
		values[r[col]] = true
	}
	total := float64(len(rows))
	return float64(empty)/total < 0.5 && float64(len(values))/total > 0.5
}
