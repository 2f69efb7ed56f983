package normalizer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
)

// column identifies a field of Row inside a statement export.
type column int

const (
	colDate column = iota
	colDescription
	colCategory
	colAmount
	colIssuerID
	colCard
	colSalesTax
	colExternalID
)

// headerAliases maps lower-cased header names to columns. Post Date, Type and
// Memo are recognised but unused.
var headerAliases = map[string]column{
	"transaction date":        colDate,
	"date":                    colDate,
	"description":             colDescription,
	"category":                colCategory,
	"amount":                  colAmount,
	"transaction id":          colIssuerID,
	"card":                    colCard,
	"card last four":          colCard,
	"sales tax":               colSalesTax,
	"external transaction id": colExternalID,
}

// CSVReader reads statement rows from a CSV export with a header line.
type CSVReader struct {
	r     *csv.Reader
	index map[column]int
	line  int
}

// NewCSVReader reads the header and validates that date, description and
// amount columns exist. A missing or unusable header wraps expense.ErrInvalidImport.
func NewCSVReader(src io.Reader) (*CSVReader, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", expense.ErrInvalidImport)
		}
		return nil, fmt.Errorf("%w: reading header: %v", expense.ErrInvalidImport, err)
	}

	index := make(map[column]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if col, ok := headerAliases[key]; ok {
			if _, seen := index[col]; !seen {
				index[col] = i
			}
		}
	}

	var missing []string
	for _, req := range []struct {
		col  column
		name string
	}{{colDate, "Transaction Date"}, {colDescription, "Description"}, {colAmount, "Amount"}} {
		if _, ok := index[req.col]; !ok {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", expense.ErrInvalidImport, strings.Join(missing, ", "))
	}

	return &CSVReader{r: r, index: index, line: 1}, nil
}

// Next returns the next non-blank row, or io.EOF when the input is exhausted.
// A row the CSV parser rejects is returned as an ErrMalformed error; the
// caller may keep reading.
func (c *CSVReader) Next() (Row, error) {
	for {
		record, err := c.r.Read()
		c.line++
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Row{}, io.EOF
			}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return Row{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, c.line, err)
			}
			return Row{}, err
		}
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}
		return Row{
			Date:         c.field(record, colDate),
			Description:  c.field(record, colDescription),
			Category:     c.field(record, colCategory),
			Amount:       c.field(record, colAmount),
			IssuerID:     c.field(record, colIssuerID),
			CardLastFour: c.field(record, colCard),
			SalesTax:     c.field(record, colSalesTax),
			ExternalID:   c.field(record, colExternalID),
		}, nil
	}
}

// Line is the 1-based line number of the last record read.
func (c *CSVReader) Line() int {
	return c.line
}

func (c *CSVReader) field(record []string, col column) string {
	i, ok := c.index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
