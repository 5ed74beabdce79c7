package services

import (
	"bytes"
	"fmt"

	"library-backend/internal/models"
	"library-backend/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
)

// ReceiptService renders a PDF receipt for a finalized payment. It is a
// read-only consumer of the settlement records.
type ReceiptService struct {
	libraryName string
	currency    string
}

func NewReceiptService(libraryName, currency string) *ReceiptService {
	if libraryName == "" {
		libraryName = "Library"
	}
	return &ReceiptService{libraryName: libraryName, currency: currency}
}

// Render produces the receipt PDF bytes.
func (s *ReceiptService) Render(data *models.ReceiptData) ([]byte, error) {
	p := data.Payment

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, s.libraryName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	s.row(pdf, "Receipt No.", p.Reference)
	s.row(pdf, "Date", timeutil.Format(p.CreatedAt, timeutil.DisplayLayout))
	s.row(pdf, "Member", fmt.Sprintf("%s (%s)", data.UserName, data.UserEmail))
	s.row(pdf, "Book", data.BookTitle)
	s.row(pdf, "Loan", fmt.Sprintf("#%d, borrowed %s", data.Loan.ID,
		timeutil.Format(data.Loan.BorrowedAt, timeutil.DateLayout)))
	s.row(pdf, "Method", p.Method)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(120, 8, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(70, 8, fmt.Sprintf("Amount (%s)", s.currency), "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(120, 8, "Borrow fee", "1", 0, "L", false, 0, "")
	pdf.CellFormat(70, 8, fmt.Sprintf("%d", p.BorrowFee), "1", 1, "R", false, 0, "")

	fineLabel := fmt.Sprintf("Overdue fine (%d days x %d)", p.FineDays, p.FinePerDay)
	pdf.CellFormat(120, 8, fineLabel, "1", 0, "L", false, 0, "")
	pdf.CellFormat(70, 8, fmt.Sprintf("%d", p.FineTotal), "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(120, 8, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(70, 8, fmt.Sprintf("%d", p.Total), "1", 1, "R", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "Thank you for using the library.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ReceiptService) row(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 7, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
}
