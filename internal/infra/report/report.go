// Package report reads and writes XLSX workbooks for the catalog and the
// archive.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/validation"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	SheetProducts  = "Products"
	SheetMaterials = "Materials"
	SheetArchive   = "SAP"
	SheetWeighings = "Weighings"

	timeLayout = "2006-01-02 15:04:05"
)

// ExportArchive writes the archive records and their weighings.
func ExportArchive(w io.Writer, recs []archive.Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := renameDefault(f, SheetArchive); err != nil {
		return err
	}
	if err := writeArchive(f, recs); err != nil {
		return err
	}
	return f.Write(w)
}

// Backup is a full workbook: products, materials and the archive.
type Backup struct {
	Products  []catalog.Product
	Materials []catalog.Material
	Archive   []archive.Record
	TakenAt   time.Time
}

func WriteBackup(w io.Writer, b Backup) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := renameDefault(f, SheetProducts); err != nil {
		return err
	}
	rows := make([][]any, 0, len(b.Products))
	for _, p := range b.Products {
		nos := make([]string, 0, len(p.Materials))
		for _, m := range p.Materials {
			nos = append(nos, m.No)
		}
		rows = append(rows, []any{p.ID, p.No, strings.Join(nos, ","), stamp(p.CreatedAt), stamp(p.UpdatedAt)})
	}
	if err := writeSheet(f, SheetProducts, []any{"id", "no", "materials", "created_at", "updated_at"}, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, m := range b.Materials {
		rows = append(rows, []any{m.ID, m.No, len(m.Products), stamp(m.CreatedAt)})
	}
	if err := writeSheet(f, SheetMaterials, []any{"id", "no", "products", "created_at"}, rows); err != nil {
		return err
	}

	if err := writeArchive(f, b.Archive); err != nil {
		return err
	}
	if !b.TakenAt.IsZero() {
		if err := f.SetDocProps(&excelize.DocProperties{
			Title:   "weighd backup",
			Created: b.TakenAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeArchive(f *excelize.File, recs []archive.Record) error {
	sap := make([][]any, 0, len(recs))
	var weighings [][]any
	for _, r := range recs {
		sap = append(sap, []any{
			r.ID, r.No, r.BatchNo, r.ProductNo,
			stamp(r.StartTime), stamp(r.EndTime), r.Duration.Seconds(),
			len(r.Materials), stamp(r.CreatedAt),
		})
		for _, m := range r.Materials {
			weighings = append(weighings, []any{
				r.ID, r.No, m.No, m.Packaging, m.Quantity,
				stamp(m.StartTime), stamp(m.EndTime), m.Duration.Seconds(),
			})
		}
	}
	if err := writeSheet(f, SheetArchive, []any{
		"id", "no", "batch_no", "product_no", "start_time", "end_time", "duration_s", "materials", "created_at",
	}, sap); err != nil {
		return err
	}
	return writeSheet(f, SheetWeighings, []any{
		"archive_id", "process_no", "material_no", "packaging", "quantity", "start_time", "end_time", "duration_s",
	}, weighings)
}

func renameDefault(f *excelize.File, name string) error {
	return f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), name)
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// ProductRow is one product line of an import workbook.
type ProductRow struct {
	Line        int
	No          string
	MaterialNos []string
}

// ParseProducts reads the active sheet: the first column is the product
// number, every following non-empty cell a material number. A first row
// whose first cell is not numeric is treated as a header.
func ParseProducts(data []byte) ([]ProductRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, err
	}
	var out []ProductRow
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		no := strings.TrimSpace(row[0])
		if i == 0 && !validation.IsNumericID(no) {
			continue
		}
		if no == "" {
			continue
		}
		pr := ProductRow{Line: i + 1, No: no, MaterialNos: []string{}}
		for _, cell := range row[1:] {
			if v := strings.TrimSpace(cell); v != "" {
				pr.MaterialNos = append(pr.MaterialNos, v)
			}
		}
		out = append(out, pr)
	}
	return out, nil
}
