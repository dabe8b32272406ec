package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WriteRecords writes header-first records to path. The format follows the
// extension: .csv or .xlsx. Numeric cells are stored as numbers in XLSX.
func WriteRecords(path string, records [][]string) error {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return writeCSV(path, records)
	}
	return writeXLSX(path, records)
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}

func writeXLSX(path string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	for r, rec := range records {
		for c, v := range rec {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			var value interface{} = v
			if r > 0 {
				if num, err := strconv.ParseFloat(v, 64); err == nil {
					value = num
				}
			}
			if err := f.SetCellValue(DefaultSheet, cell, value); err != nil {
				return fmt.Errorf("failed to set %s: %w", cell, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
