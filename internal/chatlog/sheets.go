package chatlog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore implements Store on one worksheet of a Google spreadsheet,
// columns A:D. Row positions map 1:1 to sheet rows (index 0 = row 1).
type SheetsStore struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheet         string
}

var _ Store = (*SheetsStore)(nil)

// NewSheetsStore connects with a service-account credentials file, or with
// application default credentials when credentialsFile is empty, and writes
// the header if the sheet is blank.
func NewSheetsStore(ctx context.Context, spreadsheetID, sheet, credentialsFile string) (*SheetsStore, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets client: %w", ErrUnavailable, err)
	}
	s := &SheetsStore{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
	}
	if err := s.ensureHeader(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SheetsStore) rng(a1 string) string {
	return fmt.Sprintf("'%s'!%s", s.sheet, a1)
}

func (s *SheetsStore) ensureHeader(ctx context.Context) error {
	resp, err := s.values.Get(s.spreadsheetID, s.rng("A1:D1")).Context(ctx).Do()
	if err != nil {
		return classify("read header", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	return s.write(ctx, 1, [][]string{Header})
}

func (s *SheetsStore) AppendRow(ctx context.Context, row Row) error {
	vr := &sheets.ValueRange{Values: toInterfaces([][]string{row.Values()})}
	_, err := s.values.Append(s.spreadsheetID, s.rng("A:D"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classify("append", err)
	}
	return nil
}

func (s *SheetsStore) ReadAllRows(ctx context.Context) ([][]string, error) {
	resp, err := s.values.Get(s.spreadsheetID, s.rng("A:D")).Context(ctx).Do()
	if err != nil {
		return nil, classify("read", err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, r := range resp.Values {
		cols := make([]string, len(r))
		for i, v := range r {
			cols[i] = fmt.Sprint(v)
		}
		out = append(out, cols)
	}
	return out, nil
}

func (s *SheetsStore) ClearAndReset(ctx context.Context, header []string) error {
	if _, err := s.values.Clear(s.spreadsheetID, s.rng("A:D"), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return classify("clear", err)
	}
	return s.write(ctx, 1, [][]string{header})
}

func (s *SheetsStore) OverwriteFromRow(ctx context.Context, rowIndex int, rows [][]string) error {
	if err := checkRowIndex(rowIndex); err != nil {
		return err
	}
	sheetRow := rowIndex + 1
	clearRange := s.rng(fmt.Sprintf("A%d:D", sheetRow))
	if _, err := s.values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return classify("clear tail", err)
	}
	if len(rows) == 0 {
		return nil
	}
	return s.write(ctx, sheetRow, rows)
}

func (s *SheetsStore) write(ctx context.Context, sheetRow int, rows [][]string) error {
	vr := &sheets.ValueRange{Values: toInterfaces(rows)}
	_, err := s.values.Update(s.spreadsheetID, s.rng(fmt.Sprintf("A%d", sheetRow)), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return classify("update", err)
	}
	return nil
}

func (s *SheetsStore) Close() error { return nil }

// classify marks everything except a rejected request as ErrUnavailable so
// callers can fall back to local-only operation.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
		return fmt.Errorf("sheets %s: %w", op, err)
	}
	return fmt.Errorf("sheets %s: %w: %w", op, ErrUnavailable, err)
}

func toInterfaces(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		cells := make([]interface{}, len(r))
		for j, v := range r {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}
