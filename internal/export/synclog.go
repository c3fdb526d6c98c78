package export

import (
	"context"
	"fmt"

	sheets "google.golang.org/api/sheets/v4"

	"github.com/mtlprog/carvalue/internal/domain"
)

var syncLogHeader = []any{"Started", "Duration", "Applied", "Skipped", "Errored"}

// AppendSweep ensures the SYNC_LOG sheet exists, writes the header if the sheet is new or empty,
// then appends one row for the sweep.
func (w *SheetsWriter) AppendSweep(ctx context.Context, result domain.SweepResult) error {
	meta, err := w.ensureSheets(ctx, syncLogSheet)
	if err != nil {
		return fmt.Errorf("ensuring %s sheet: %w", syncLogSheet, err)
	}

	existing, err := w.svc.Spreadsheets.Values.Get(
		w.spreadsheetID, syncLogSheet+"!A1",
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading %s header: %w", syncLogSheet, err)
	}

	if len(existing.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			syncLogSheet+"!A1",
			&sheets.ValueRange{Values: [][]any{syncLogHeader}},
		).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing %s header: %w", syncLogSheet, err)
		}

		freeze := &sheets.Request{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        meta[syncLogSheet].id,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		}
		_, err = w.svc.Spreadsheets.BatchUpdate(
			w.spreadsheetID,
			&sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{freeze}},
		).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("formatting %s sheet: %w", syncLogSheet, err)
		}
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		syncLogSheet+"!A:E",
		&sheets.ValueRange{Values: [][]any{sweepValues(result)}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending %s row: %w", syncLogSheet, err)
	}

	return nil
}
