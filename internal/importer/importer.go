package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"cakeshop-cart/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads cake catalog CSV files and inserts/updates products.
// Expected columns: id,name,description,price,currency,image_url.
type CSVImporter struct {
	reader          *csv.Reader
	productRepo     ProductWriter
	defaultCurrency string
}

func NewCSVImporter(r io.Reader, repo ProductWriter, defaultCurrency string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:          csvr,
		productRepo:     repo,
		defaultCurrency: defaultCurrency,
	}
}

type csvRow struct {
	Line     int
	ID       string
	Name     string
	Desc     string
	Price    string
	Currency string
	ImageURL string
}

var requiredHeaders = []string{"id", "name", "price"}

// Run parses CSV rows and upserts one product per row. It stops at the first
// invalid row and reports how many products were saved before it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return 0, fmt.Errorf("missing %q column", h)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.Line = line
		if err := i.save(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.ID == "" || row.Name == "" || row.Price == "" {
		return fmt.Errorf("row %d: invalid product row (missing required fields) for id %q", row.Line, row.ID)
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return fmt.Errorf("row %d: invalid price %q for id %q: %w", row.Line, row.Price, row.ID, err)
	}
	if price.IsNegative() {
		return fmt.Errorf("row %d: negative price for id %q", row.Line, row.ID)
	}
	currency := strings.ToUpper(row.Currency)
	if currency == "" {
		currency = i.defaultCurrency
	}

	p := domain.Product{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Desc,
		Price:       price,
		Currency:    currency,
		ImageURL:    row.ImageURL,
	}

	if _, err := i.productRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.ID, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	row := &csvRow{
		ID:       pick(record, index, "id"),
		Name:     pick(record, index, "name"),
		Desc:     pick(record, index, "description"),
		Price:    pick(record, index, "price"),
		Currency: pick(record, index, "currency"),
		ImageURL: pick(record, index, "image_url"),
	}
	if row.ID == "" && row.Name == "" && row.Price == "" {
		return nil
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
