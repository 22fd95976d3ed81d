package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// this file contains functions to handle spreadsheet imports.
// A spreadsheet is a list of rows holding a symbol, a quantity and a per share cost.

// ReadSheet reads the records of a spreadsheet, the format is chosen from the
// file name extension: ".xlsx" for Excel workbooks (first sheet), anything
// else is read as CSV.
func ReadSheet(name string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	default:
		return ReadCSV(r)
	}
}

// ReadCSV reads comma or semicolon separated records.
func ReadCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cannot read csv: %w", err)
	}
	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	// spreadsheets exported with a comma decimal separator use ';' between fields.
	firstLine, _, _ := strings.Cut(string(data), "\n")
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		cr.Comma = ';'
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return records, nil
}

// ReadXLSX reads the rows of the first sheet of an Excel workbook.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheet")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("cannot read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// SheetRow is one valid spreadsheet row.
type SheetRow struct {
	Symbol   string
	Quantity Quantity
	Cost     Money // per share
}

var (
	symbolHeaders   = []string{"symbol", "ticker", "code", "stock", "hisse", "sembol"}
	quantityHeaders = []string{"quantity", "qty", "shares", "amount", "lot", "adet", "miktar"}
	costHeaders     = []string{"cost", "price", "avg cost", "average cost", "avgcost", "maliyet", "fiyat"}
)

// ParseRows converts records to sheet rows in currency cur. A header row is
// recognised when its quantity cell is not a number; its labels then select
// the columns, otherwise columns are symbol, quantity, cost.
//
// Rows with an empty symbol, a non numeric quantity or cost, or a quantity
// that is not positive are skipped and counted.
func ParseRows(records [][]string, cur string) (rows []SheetRow, skipped int) {
	sym, qty, cost := 0, 1, 2
	if len(records) > 0 && len(records[0]) > qty {
		if _, err := parseNumber(records[0][qty]); err != nil {
			sym, qty, cost = headerColumns(records[0])
			records = records[1:]
		}
	}
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		if len(rec) <= max(sym, qty, cost) {
			skipped++
			continue
		}
		symbol := NormalizeSymbol(rec[sym])
		q, qerr := parseNumber(rec[qty])
		c, cerr := parseNumber(rec[cost])
		if symbol == "" || qerr != nil || cerr != nil || !q.IsPositive() || c.IsNegative() {
			skipped++
			continue
		}
		rows = append(rows, SheetRow{Symbol: symbol, Quantity: Q(q), Cost: M(c, cur)})
	}
	return rows, skipped
}

func headerColumns(header []string) (sym, qty, cost int) {
	sym, qty, cost = 0, 1, 2
	find := func(names []string, def int) int {
		for i, h := range header {
			if slices.Contains(names, strings.ToLower(strings.TrimSpace(h))) {
				return i
			}
		}
		return def
	}
	return find(symbolHeaders, sym), find(quantityHeaders, qty), find(costHeaders, cost)
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseNumber parses spreadsheet numbers such as "1,234.50", "1.234,50" or "12,5".
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\'':
			return -1
		}
		return r
	}, s)
	lastComma, lastDot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		// 1.234,50
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		// 1,234.50
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0 && strings.Count(s, ",") == 1:
		// 12,5
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0:
		// 1,234,567
		s = strings.ReplaceAll(s, ",", "")
	}
	return decimal.NewFromString(s)
}

// Aggregate groups rows by symbol. Each resulting position holds the summed
// quantity, a weighted average cost (summed cost over summed quantity), and
// one buy transaction per contributing row. Positions keep the order of first
// appearance.
func Aggregate(rows []SheetRow, cur string, on time.Time) []*Position {
	var positions []*Position
	index := make(map[string]*Position)
	for _, r := range rows {
		p, ok := index[r.Symbol]
		if !ok {
			p = NewPosition(r.Symbol, cur)
			index[r.Symbol] = p
			positions = append(positions, p)
		}
		// rows are already validated, a buy cannot fail.
		if _, err := p.Buy(r.Quantity, r.Cost.In(cur), on); err != nil {
			panic(err)
		}
	}
	return positions
}

// ImportReport describes the outcome of a spreadsheet import.
type ImportReport struct {
	Rows      int         `json:"rows"` // valid rows
	Skipped   int         `json:"skipped"`
	Positions []*Position `json:"positions"`
}

// ImportSheet reads, parses and aggregates a spreadsheet.
func ImportSheet(name string, r io.Reader, cur string, on time.Time) (*ImportReport, error) {
	records, err := ReadSheet(name, r)
	if err != nil {
		return nil, err
	}
	rows, skipped := ParseRows(records, cur)
	return &ImportReport{
		Rows:      len(rows),
		Skipped:   skipped,
		Positions: Aggregate(rows, cur, on),
	}, nil
}

// ExportCSV writes the open positions as symbol, quantity, cost rows with a
// header, in a form ImportSheet reads back.
func ExportCSV(w io.Writer, positions []*Position) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"symbol", "quantity", "cost"}); err != nil {
		return err
	}
	for _, p := range positions {
		if !p.Shares.IsPositive() {
			continue
		}
		rec := []string{p.Symbol, p.Shares.String(), p.AvgCost.Decimal().Round(4).String()}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("cannot write %s: %w", p.Symbol, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
