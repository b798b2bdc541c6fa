package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/money"
)

// RowError reports an import row that was skipped. Line is the 1-based line
// number in the file, header included.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Row is a parsed import row with its line number.
type Row struct {
	Line int
	models.ProductCSV
}

type ImportResult struct {
	Imported []models.Product `json:"imported"`
	Skipped  []RowError       `json:"skipped"`
}

var requiredColumns = []string{"name", "price"}

// ParseCSV reads product rows keyed by the header line. Recognised columns are
// id, name, description, price, cost, qty, min_stock, is_six_pack and
// pack_quantity; only name and price are required. Malformed rows are
// returned as RowErrors rather than failing the whole file.
func ParseCSV(r io.Reader) ([]Row, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, models.Wrap(models.KindValidation, "failed to read CSV", err)
	}
	if len(records) < 2 {
		return nil, nil, models.NewError(models.KindValidation, "CSV is empty or has only headers")
	}

	cols := map[string]int{}
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, nil, models.NewError(models.KindValidation, "CSV is missing required column %q", c)
		}
	}

	var rows []Row
	var skipped []RowError
	for i, record := range records[1:] {
		line := i + 2
		row, err := parseRow(record, cols)
		if err != nil {
			skipped = append(skipped, RowError{Line: line, Reason: err.Error()})
			continue
		}
		rows = append(rows, Row{Line: line, ProductCSV: row})
	}
	return rows, skipped, nil
}

func parseRow(record []string, cols map[string]int) (models.ProductCSV, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	atoi := func(name string) (int, error) {
		v := field(name)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, v)
		}
		return n, nil
	}

	row := models.ProductCSV{
		ID:          field("id"),
		Name:        field("name"),
		Description: field("description"),
		Price:       field("price"),
		Cost:        field("cost"),
	}
	if row.Name == "" {
		return row, fmt.Errorf("missing name")
	}

	var err error
	if row.Qty, err = atoi("qty"); err != nil {
		return row, err
	}
	if row.MinimumStockLevel, err = atoi("min_stock"); err != nil {
		return row, err
	}
	if row.PackQuantity, err = atoi("pack_quantity"); err != nil {
		return row, err
	}
	if v := field("is_six_pack"); v != "" {
		if row.IsSixPack, err = strconv.ParseBool(v); err != nil {
			return row, fmt.Errorf("invalid is_six_pack %q", v)
		}
	}
	return row, nil
}

func (s *Service) inputFromCSV(row models.ProductCSV) (ProductInput, error) {
	price, err := money.Parse(row.Price)
	if err != nil {
		return ProductInput{}, err
	}
	cost := decimal.Zero
	if row.Cost != "" {
		if cost, err = money.Parse(row.Cost); err != nil {
			return ProductInput{}, err
		}
	}
	in := ProductInput{
		Name:         row.Name,
		Description:  row.Description,
		UnitPrice:    price,
		CostPrice:    cost,
		StockLevel:   row.Qty,
		IsSixPack:    row.IsSixPack,
		PackQuantity: row.PackQuantity,
	}
	if row.MinimumStockLevel > 0 {
		minStock := row.MinimumStockLevel
		in.MinimumStockLevel = &minStock
	}
	return in, nil
}

// ImportCSV upserts every valid row by product name in one transaction and
// refreshes the product cache once it commits.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	rows, skipped, err := ParseCSV(r)
	if err != nil {
		return ImportResult{}, err
	}
	result := ImportResult{Skipped: skipped}

	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		for _, row := range rows {
			in, err := s.inputFromCSV(row.ProductCSV)
			if err != nil {
				result.Skipped = append(result.Skipped, RowError{Line: row.Line, Reason: err.Error()})
				continue
			}
			p, err := BuildProduct(in, s.engine)
			if err != nil {
				result.Skipped = append(result.Skipped, RowError{Line: row.Line, Reason: err.Error()})
				continue
			}

			now := s.clock.Now()
			p.ID = row.ID
			if _, err := uuid.Parse(p.ID); err != nil {
				p.ID = uuid.NewString()
			}
			p.CreatedAt = now
			p.UpdatedAt = now

			stored, err := s.store.UpsertProductByName(ctx, p)
			if err != nil {
				return fmt.Errorf("upsert product %s: %w", p.Name, err)
			}
			result.Imported = append(result.Imported, stored)
		}
		return nil
	})
	if err != nil {
		return ImportResult{Skipped: skipped}, err
	}

	ids := make([]string, len(result.Imported))
	for i, p := range result.Imported {
		ids[i] = p.ID
	}
	s.invalidate(ctx, ids...)
	s.logger.Info("product import finished", zap.Int("imported", len(result.Imported)), zap.Int("skipped", len(result.Skipped)))
	return result, nil
}
