package ingest

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contact-cli/internal/model"
)

// exportHeaders is the column order of an exported results workbook.
var exportHeaders = []string{
	"PROJECT_ID", "FIRST_NAME", "MIDDLE_NAME", "LAST_NAME",
	"CITY", "STATE_CODE", "PHONE", "EMAIL", "FULL_ADDRESS",
	"CONFIDENCE_SCORE", "MATCH_STATUS", "SOURCE_URLS",
	"VERIFICATION_REASONING",
}

// WriteResults writes resolved provider records as an xlsx workbook.
func WriteResults(w io.Writer, records []model.ProviderRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("HCP Results")
	if err != nil {
		return eris.Wrap(err, "ingest: add results sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.ProjectID)
		row.AddCell().SetString(r.FirstName)
		row.AddCell().SetString(r.MiddleName)
		row.AddCell().SetString(r.LastName)
		row.AddCell().SetString(r.City)
		row.AddCell().SetString(r.StateCode)
		row.AddCell().SetString(r.Phone)
		row.AddCell().SetString(r.Email)
		row.AddCell().SetString(r.FullAddress)
		row.AddCell().SetInt(r.Confidence)
		row.AddCell().SetString(string(r.Status))
		row.AddCell().SetString(strings.Join(r.SourceURLs, ", "))
		row.AddCell().SetString(r.Reasoning)
	}

	return eris.Wrap(f.Write(w), "ingest: write results workbook")
}
