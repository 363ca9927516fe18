package invoice

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

// Renderer turns a transaction into a one-page PDF invoice
type Renderer struct {
	currency string
	issuer   string
}

// NewRenderer creates a renderer that labels amounts with currency and signs invoices as issuer
func NewRenderer(currency, issuer string) *Renderer {
	if currency == "" {
		currency = "INR"
	}
	if issuer == "" {
		issuer = "PayLog"
	}
	return &Renderer{currency: currency, issuer: issuer}
}

// Render builds the invoice. reference is printed as the invoice number.
func (r *Renderer) Render(tx *entity.Transaction, reference string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s Invoice %s", r.issuer, reference), false)
	pdf.SetCreator(r.issuer, false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(r.issuer+" Invoice"))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, tr("Invoice #: "+reference))
	pdf.Ln(6)
	pdf.Cell(0, 7, "Date: "+tx.Date.Format("02 Jan 2006"))
	pdf.Ln(6)
	pdf.Cell(0, 7, "Recorded: "+tx.CreatedAt.Format("02 Jan 2006 15:04 MST"))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(90, 8, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 8, "Type", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 8, "Amount ("+r.currency+")", "1", 0, "R", true, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(90, 8, tr(tx.Name), "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, typeLabel(tx.Type), "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, formatAmount(tx.Amount), "1", 0, "R", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(130, 8, "Total")
	pdf.CellFormat(60, 8, r.currency+" "+formatAmount(tx.Amount), "", 0, "R", false, 0, "")
	pdf.Ln(12)

	if strings.TrimSpace(tx.Remarks) != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 7, "Remarks")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(tx.Remarks), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func typeLabel(t entity.Type) string {
	switch t {
	case entity.Credit:
		return "Credit (received)"
	case entity.Debit:
		return "Debit (paid)"
	default:
		return string(t)
	}
}

func formatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}
