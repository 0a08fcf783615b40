package payment

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"decorbook/internal/booking"
)

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// RenderReceipt produces a one-page PDF for a recorded payment.
func RenderReceipt(p booking.Payment, b *booking.Booking, issuedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Receipt", false)
	pdf.SetAuthor("decorbook", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "PAYMENT RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Receipt No  : "+p.ID)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Issued      : "+issuedAt.Format("2006-01-02 15:04"))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Paid at     : "+p.CreatedAt.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Billed to:")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	name := ""
	if b != nil {
		name = b.CustomerName
	}
	pdf.Cell(0, 7, fmt.Sprintf("Name   : %s", orDash(name)))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Email  : %s", orDash(p.CustomerEmail)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Details:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, "Service: "+orDash(p.ServiceName), "", "", false)
	if b != nil {
		pdf.Cell(0, 6, "Event date: "+b.BookingDate)
		pdf.Ln(6)
		pdf.MultiCell(0, 6, "Location: "+orDash(b.Location), "", "", false)
	}
	pdf.Cell(0, 6, "Booking: "+p.BookingID)
	pdf.Ln(6)
	pdf.Cell(0, 6, "Transaction: "+p.TransactionID)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Total paid: %s %s", p.Amount.StringFixed(2), strings.ToUpper(p.Currency)))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Thank you for booking with us. Keep this receipt for your records.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
