package scrub

import (
	"bytes"
	"errors"

	"github.com/xuri/excelize/v2"
)

type spreadsheetSanitizer struct{}

// Sanitize opens the workbook with excelize, blanks the property parts and
// saves it again. Legacy .xls workbooks are rejected by excelize.
func (spreadsheetSanitizer) Sanitize(data []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError("spreadsheet", err)
	}
	defer f.Close()

	if len(f.GetSheetList()) == 0 {
		return nil, decodeError("spreadsheet", errors.New("workbook has no sheets"))
	}

	for name, blank := range blankProperties {
		if _, ok := f.Pkg.Load(name); ok {
			f.Pkg.Store(name, blank)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, decodeError("spreadsheet", err)
	}
	return buf.Bytes(), nil
}
