package files

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
)

// productSheet is the JSON export of one product.
type productSheet struct {
	CIP              string   `json:"cip"`
	Name             string   `json:"name"`
	Laboratory       string   `json:"laboratory"`
	Categories       []string `json:"categories,omitempty"`
	ActiveSubstances []string `json:"active_substances,omitempty"`
	Description      string   `json:"description,omitempty"`
	Dosage           string   `json:"dosage,omitempty"`
	PackSize         string   `json:"pack_size,omitempty"`
	Price            string   `json:"price,omitempty"`
	Reimbursement    string   `json:"reimbursement,omitempty"`
}

func sheetFromProduct(product *models.Product) productSheet {
	return productSheet{
		CIP:              product.CIP,
		Name:             product.Name,
		Laboratory:       product.Laboratory,
		Categories:       product.Categories,
		ActiveSubstances: product.ActiveSubstances,
		Description:      deref(product.Description),
		Dosage:           deref(product.Dosage),
		PackSize:         deref(product.PackSize),
		Price:            formatPrice(product.PriceCents),
		Reimbursement:    deref(product.Reimbursement),
	}
}

func renderProductJSON(product *models.Product) ([]byte, error) {
	data, err := json.MarshalIndent(sheetFromProduct(product), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal product sheet: %w", err)
	}
	return data, nil
}

func renderProductPDF(product *models.Product) ([]byte, error) {
	sheet := sheetFromProduct(product)

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} / {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(18,
		text.NewCol(8, sheet.Name, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "PharmaData", props.Text{
			Size:  10,
			Align: align.Right,
			Top:   4,
		}),
	)
	m.AddRow(3, line.NewCol(12))

	m.AddRow(16,
		col.New(6).Add(
			text.New("CIP13: "+sheet.CIP, props.Text{Top: 0, Size: 10}),
			text.New("Laboratoire: "+sheet.Laboratory, props.Text{Top: 6, Size: 10}),
		),
		col.New(6).Add(
			text.New(labelled("Dosage", sheet.Dosage), props.Text{Top: 0, Size: 10}),
			text.New(labelled("Conditionnement", sheet.PackSize), props.Text{Top: 6, Size: 10}),
		),
	)

	if len(sheet.ActiveSubstances) > 0 {
		m.AddRow(10,
			text.NewCol(12, "Substances actives: "+strings.Join(sheet.ActiveSubstances, ", "), props.Text{Size: 10}),
		)
	}
	if len(sheet.Categories) > 0 {
		m.AddRow(10,
			text.NewCol(12, "Categories: "+strings.Join(sheet.Categories, ", "), props.Text{Size: 10}),
		)
	}
	if sheet.Description != "" {
		m.AddRow(30,
			text.NewCol(12, sheet.Description, props.Text{Size: 9}),
		)
	}

	m.AddRow(14,
		col.New(6).Add(
			text.New(labelled("Prix", sheet.Price), props.Text{Size: 10, Style: fontstyle.Bold}),
		),
		col.New(6).Add(
			text.New(labelled("Remboursement", sheet.Reimbursement), props.Text{Size: 10}),
		),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render product pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

// buildArchive bundles the PDF and JSON sheet of every product into one zip.
func buildArchive(products []*models.Product) ([]byte, error) {
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)

	for _, product := range products {
		pdfData, err := renderProductPDF(product)
		if err != nil {
			return nil, err
		}
		jsonData, err := renderProductJSON(product)
		if err != nil {
			return nil, err
		}
		if err := writeArchiveEntry(archive, product.Slug+".pdf", pdfData); err != nil {
			return nil, err
		}
		if err := writeArchiveEntry(archive, product.Slug+".json", jsonData); err != nil {
			return nil, err
		}
	}

	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeArchiveEntry(archive *zip.Writer, name string, data []byte) error {
	entry, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}

func labelled(label, value string) string {
	if value == "" {
		return label + ": -"
	}
	return label + ": " + value
}

func formatPrice(cents *int64) string {
	if cents == nil {
		return ""
	}
	return fmt.Sprintf("%.2f EUR", float64(*cents)/100)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
