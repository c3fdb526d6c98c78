package export

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

const (
	valuationsSheet = "VALUATIONS"
	syncLogSheet    = "SYNC_LOG"
)

// SheetsWriter implements SheetWriter using the Google Sheets API.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Write ensures the VALUATIONS sheet exists, then clears and rewrites it.
func (w *SheetsWriter) Write(ctx context.Context, rows []ValuationRow) error {
	meta, err := w.ensureSheets(ctx, valuationsSheet)
	if err != nil {
		return err
	}

	_, err = w.svc.Spreadsheets.Values.Clear(
		w.spreadsheetID,
		valuationsSheet+"!A:O",
		&sheets.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing sheet: %w", err)
	}

	_, err = w.svc.Spreadsheets.Values.Update(
		w.spreadsheetID,
		valuationsSheet+"!A1",
		&sheets.ValueRange{Values: buildValuations(rows)},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing sheet: %w", err)
	}

	if err := w.applyValuationFormatting(ctx, meta[valuationsSheet]); err != nil {
		return fmt.Errorf("formatting %s sheet: %w", valuationsSheet, err)
	}
	return nil
}

// buildValuations builds the VALUATIONS sheet data: header then one row per vehicle.
func buildValuations(rows []ValuationRow) [][]any {
	data := make([][]any, 0, len(rows)+1)
	data = append(data, reportHeader)
	for _, row := range rows {
		data = append(data, rowValues(row))
	}
	return data
}

// sheetMeta holds the parts of a sheet's properties needed for formatting.
type sheetMeta struct {
	id int64
}

// ensureSheets creates any of the named sheets that do not already exist and returns their metadata.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) (map[string]sheetMeta, error) {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	meta := make(map[string]sheetMeta, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		meta[s.Properties.Title] = sheetMeta{id: s.Properties.SheetId}
	}

	var requests []*sheets.Request
	for _, name := range names {
		if _, ok := meta[name]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) == 0 {
		return meta, nil
	}

	resp, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests},
	).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating sheets: %w", err)
	}

	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			meta[reply.AddSheet.Properties.Title] = sheetMeta{id: reply.AddSheet.Properties.SheetId}
		}
	}
	return meta, nil
}

// numberCols lists the 0-based VALUATIONS columns holding plain numbers (J, K, L).
var numberCols = []int64{9, 10, 11}

// applyValuationFormatting freezes the header row and title column, bolds the header and applies
// #,##0 to the numeric columns.
func (w *SheetsWriter) applyValuationFormatting(ctx context.Context, sheet sheetMeta) error {
	totalCols := int64(len(reportHeader))

	reqs := []*sheets.Request{
		cellFormatReq(sheet.id, 0, 1, 0, totalCols,
			&sheets.CellFormat{
				TextFormat:          &sheets.TextFormat{Bold: true},
				HorizontalAlignment: "CENTER",
			},
			"userEnteredFormat(textFormat,horizontalAlignment)"),
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheet.id,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount:    1,
						FrozenColumnCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount,gridProperties.frozenColumnCount",
			},
		},
	}

	for _, col := range numberCols {
		reqs = append(reqs, cellFormatReq(sheet.id, 1, 10000, col, col+1,
			&sheets.CellFormat{NumberFormat: &sheets.NumberFormat{Type: "NUMBER", Pattern: "#,##0"}},
			"userEnteredFormat.numberFormat"))
	}

	_, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs},
	).Context(ctx).Do()
	return err
}

func cellFormatReq(sheetID, startRow, endRow, startCol, endCol int64, format *sheets.CellFormat, fields string) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    startRow,
				EndRowIndex:      endRow,
				StartColumnIndex: startCol,
				EndColumnIndex:   endCol,
			},
			Cell:   &sheets.CellData{UserEnteredFormat: format},
			Fields: fields,
		},
	}
}
