package render

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSites     = "Kegiatan"
	sheetMaterials = "Material"
	sheetEquipment = "Peralatan"
	sheetHeavy     = "Alat Berat"
)

// XLSX renders the document as a workbook with one sheet per collection.
// Rows of child sheets carry the site label so they can be filtered back.
func XLSX(doc *Document) (*Result, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetSites)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Family: "Arial"},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Family: "Arial", Color: "#FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	w := &sheetWriter{f: f, headerStyle: headerStyle}

	// Kegiatan: title block, then one row per site
	f.SetCellValue(sheetSites, "A1", doc.Title)
	f.SetCellStyle(sheetSites, "A1", "A1", titleStyle)
	if doc.Date != "" {
		f.SetCellValue(sheetSites, "A2", "Tanggal")
		f.SetCellValue(sheetSites, "B2", doc.Date)
	}
	if doc.Period != "" {
		f.SetCellValue(sheetSites, "A3", "Periode")
		f.SetCellValue(sheetSites, "B3", doc.Period)
	}

	header := []interface{}{"Kegiatan", "Jalan", "Kecamatan", "Kelurahan", "Tanggal Kegiatan", "Koordinator"}
	if doc.ShowMeasurements {
		header = append(header, "Panjang (m)", "Lebar (m)", "Tinggi Sedimen (m)", "Volume (m³)")
	}
	if doc.ShowTargets {
		header = append(header, "Panjang Rencana", "Panjang Realisasi", "Volume Rencana", "Volume Realisasi", "Sisa Waktu")
	}
	header = append(header, "Personel", "Keterangan")
	rows := make([][]interface{}, 0, len(doc.Sites))
	for _, s := range doc.Sites {
		row := []interface{}{s.Label, s.Street, s.District, s.SubDistrict, s.ActivityDate, s.Coordinators}
		if doc.ShowMeasurements {
			row = append(row, s.Length, s.Width, s.SedimentHeight, s.Volume)
		}
		if doc.ShowTargets {
			row = append(row, s.PlannedLength, s.RealizedLength, s.PlannedVolume, s.RealizedVolume, s.RemainingDays)
		}
		row = append(row, personnelText(s.Personnel), s.Notes)
		rows = append(rows, row)
	}
	if err := w.table(sheetSites, 5, header, rows); err != nil {
		return nil, err
	}

	// Material
	rows = rows[:0]
	for _, s := range doc.Sites {
		for _, a := range s.Activities {
			for _, m := range a.Materials {
				rows = append(rows, []interface{}{s.Label, a.Number, a.Channel, a.Sediment, m.Type, m.Quantity, m.Unit, m.Notes})
			}
		}
	}
	if err := w.sheet(sheetMaterials,
		[]interface{}{"Kegiatan", "Penanganan", "Jenis Saluran", "Jenis Sedimen", "Material", "Jumlah", "Satuan", "Keterangan"},
		rows); err != nil {
		return nil, err
	}

	// Peralatan
	rows = rows[:0]
	for _, s := range doc.Sites {
		for _, e := range s.Equipment {
			rows = append(rows, []interface{}{s.Label, e.Name, e.Quantity, e.Unit})
		}
	}
	if err := w.sheet(sheetEquipment, []interface{}{"Kegiatan", "Nama", "Jumlah", "Satuan"}, rows); err != nil {
		return nil, err
	}

	// Alat Berat
	if doc.ShowHeavy {
		rows = rows[:0]
		for _, s := range doc.Sites {
			for _, h := range s.HeavyEquipment {
				rows = append(rows, []interface{}{s.Label, h.Type, h.Quantity, h.Diesel, h.Petrol, h.Lubricant, h.Notes})
			}
		}
		if err := w.sheet(sheetHeavy,
			[]interface{}{"Kegiatan", "Jenis", "Jumlah", "Solar", "Bensin", "Oli", "Keterangan"},
			rows); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &Result{
		Data:     buf.Bytes(),
		Filename: doc.Filename() + ".xlsx",
		MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}

type sheetWriter struct {
	f           *excelize.File
	headerStyle int
}

func (w *sheetWriter) sheet(name string, header []interface{}, rows [][]interface{}) error {
	if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	return w.table(name, 1, header, rows)
}

// table writes a styled header at startRow followed by the rows
func (w *sheetWriter) table(name string, startRow int, header []interface{}, rows [][]interface{}) error {
	first, err := excelize.CoordinatesToCellName(1, startRow)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), startRow)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(name, first, &header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := w.f.SetCellStyle(name, first, last, w.headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", name, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, startRow+1+i)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return w.f.SetColWidth(name, "A", lastCol, 18)
}

func personnelText(ps []PersonnelDoc) string {
	out := ""
	for i, p := range ps {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s %d", p.Role, p.Count)
	}
	return out
}
