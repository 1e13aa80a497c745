// Package ingest parses provider rosters from Excel files and exports
// resolved results back out.
package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/contact-cli/internal/model"
)

// rosterColumns are the recognised roster headers after normalisation.
var rosterColumns = map[string]bool{
	"PROJECT_ID":     true,
	"FIRST_NAME":     true,
	"MIDDLE_NAME":    true,
	"LAST_NAME":      true,
	"ADDRESS_LINE_1": true,
	"ADDRESS_LINE_2": true,
	"CITY":           true,
	"STATE_CODE":     true,
}

// ParseRoster reads a roster workbook from disk.
func ParseRoster(path string) ([]model.Provider, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open roster %s", path)
	}
	return parseRosterFile(f, path)
}

// ParseRosterBytes reads a roster workbook from an in-memory upload.
func ParseRosterBytes(data []byte, filename string) ([]model.Provider, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read roster %s", filename)
	}
	return parseRosterFile(f, filename)
}

func parseRosterFile(f *xlsx.File, filename string) ([]model.Provider, error) {
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}
	sheet := f.Sheets[0]

	if len(sheet.Rows) < 2 {
		return nil, eris.New("ingest: roster needs a header row and at least one data row")
	}

	colMap, rawHeaders := mapHeaders(sheet.Rows[0])
	if _, ok := colMap["PROJECT_ID"]; !ok {
		return nil, eris.Errorf("ingest: missing required column PROJECT_ID, found: %s",
			strings.Join(rawHeaders, ", "))
	}

	var providers []model.Provider
	skipped := 0

	for _, row := range sheet.Rows[1:] {
		cell := func(col string) string {
			idx, ok := colMap[col]
			if !ok || idx >= len(row.Cells) {
				return ""
			}
			return strings.TrimSpace(row.Cells[idx].String())
		}

		projectID := cell("PROJECT_ID")
		if projectID == "" {
			skipped++
			continue
		}

		providers = append(providers, model.Provider{
			ProjectID:    projectID,
			FirstName:    cell("FIRST_NAME"),
			MiddleName:   cell("MIDDLE_NAME"),
			LastName:     cell("LAST_NAME"),
			AddressLine1: cell("ADDRESS_LINE_1"),
			AddressLine2: cell("ADDRESS_LINE_2"),
			City:         cell("CITY"),
			StateCode:    cell("STATE_CODE"),
		})
	}

	zap.L().Info("roster parsed",
		zap.String("filename", filename),
		zap.Int("records", len(providers)),
		zap.Int("skipped", skipped),
	)
	return providers, nil
}

// mapHeaders normalises the header row and maps recognised columns to
// their indexes.
func mapHeaders(header *xlsx.Row) (map[string]int, []string) {
	colMap := make(map[string]int)
	raw := make([]string, 0, len(header.Cells))

	for idx, c := range header.Cells {
		h := strings.TrimSpace(c.String())
		raw = append(raw, h)
		norm := strings.ReplaceAll(strings.ToUpper(h), " ", "_")
		if rosterColumns[norm] {
			colMap[norm] = idx
		}
	}
	return colMap, raw
}
