package reconcile

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lolikgiovi/lockey/pkg/extract"
)

var exportHeader = []string{"Lockey", "Conflu Style", "In Remote"}

func styleLabel(s extract.Status) string {
	switch s {
	case extract.StatusPlain:
		return "Plain"
	case extract.StatusStriked:
		return "Striked"
	case extract.StatusUncertain:
		return "Uncertain"
	default:
		return "Unknown"
	}
}

func remoteLabel(inRemote bool) string {
	if inRemote {
		return "Yes"
	}
	return "No"
}

// WriteTSV writes candidates as tab-separated values with a header row.
func WriteTSV(w io.Writer, candidates []Candidate) error {
	if _, err := fmt.Fprintln(w, strings.Join(exportHeader, "\t")); err != nil {
		return err
	}
	for _, c := range candidates {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", c.Key, styleLabel(c.Status), remoteLabel(c.InRemote)); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes candidates as comma-separated values with a header row.
// Values containing commas or quotes are wrapped in double quotes.
func WriteCSV(w io.Writer, candidates []Candidate) error {
	if _, err := fmt.Fprintln(w, strings.Join(exportHeader, ",")); err != nil {
		return err
	}
	for _, c := range candidates {
		fields := []string{csvField(c.Key), styleLabel(c.Status), remoteLabel(c.InRemote)}
		if _, err := fmt.Fprintln(w, strings.Join(fields, ",")); err != nil {
			return err
		}
	}
	return nil
}

func csvField(value string) string {
	if !strings.ContainsAny(value, ",\"\n") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// WriteXLSX writes candidates as a single-sheet spreadsheet.
func WriteXLSX(w io.Writer, candidates []Candidate) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for col, name := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}

	for i, c := range candidates {
		values := []string{c.Key, styleLabel(c.Status), remoteLabel(c.InRemote)}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
