// Package pdf renders booking itineraries.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"travelagent/models"
)

// Itinerary renders a confirmed booking as a one-document PDF.
func Itinerary(b models.BookingRecord, generated time.Time) ([]byte, error) {
	return render(b, generated, true)
}

func render(b models.BookingRecord, generated time.Time, compress bool) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compress)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	// ── Header Bar ───────────────────────────────────────────
	pdf.SetFillColor(13, 24, 37)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(100, 10, "Travel Itinerary", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(212, 168, 67)
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, "Booking reference "+orNA(b.BookingReference), "", 1, "L", false, 0, "")

	pdf.SetY(35)
	pdf.SetTextColor(0, 0, 0)

	if b.Status == models.BookingCancelled {
		pdf.SetFillColor(255, 235, 235)
		pdf.SetDrawColor(200, 60, 60)
		pdf.SetTextColor(150, 30, 30)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetLineWidth(0.4)
		y := pdf.GetY()
		pdf.Rect(20, y, 170, 10, "FD")
		pdf.SetXY(23, y+2)
		pdf.MultiCell(164, 5, "This booking has been cancelled.", "", "C", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(0.2)
		pdf.Ln(6)
	}

	// ── Section Helper ───────────────────────────────────────
	sectionHeader := func(title string) {
		pdf.SetFillColor(13, 24, 37)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(170, 8, "  "+title, "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(55, 7, label, "", 0, "L", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(115, 7, value, "", 1, "L", false, 0, "")
	}

	// ── Booking ───────────────────────────────────────────────
	sectionHeader("Booking")
	row("Reference", orNA(b.BookingReference))
	row("Order", orNA(b.OrderID))
	row("Status", orNA(b.Status))
	row("Payment", orNA(b.PaymentStatus))
	if !b.CreatedAt.IsZero() {
		row("Booked", b.CreatedAt.UTC().Format("02 Jan 2006, 15:04 UTC"))
	}
	row("Generated", generated.UTC().Format("02 Jan 2006, 15:04 UTC"))
	pdf.Ln(4)

	// ── Passengers ────────────────────────────────────────────
	sectionHeader("Passengers")
	if len(b.Passengers) == 0 {
		row("Name", "Guest Traveler")
	}
	for i, p := range b.Passengers {
		detail := strings.TrimSpace(p.FirstName + " " + p.LastName)
		if p.DateOfBirth != "" {
			detail += ", born " + fmtDateReadable(p.DateOfBirth)
		}
		row(fmt.Sprintf("Passenger %d", i+1), detail)
	}
	pdf.Ln(4)

	// ── Flights ───────────────────────────────────────────────
	for i, it := range b.Offer.Itineraries {
		title := "Outbound Flight"
		if i > 0 {
			title = "Return Flight"
		}
		sectionHeader(title)
		for _, s := range it.Segments {
			row(flightLabel(s), formatSegment(s))
			if s.AircraftName != "" || s.AircraftCode != "" {
				row("", "Aircraft: "+firstNonEmpty(s.AircraftName, s.AircraftCode))
			}
		}
		if it.Duration != "" {
			row("Duration", humanDuration(it.Duration))
		}
		pdf.Ln(4)
	}

	// ── Price ─────────────────────────────────────────────────
	sectionHeader("Price")
	currency := firstNonEmpty(b.Currency, b.Offer.Price.Currency)
	row("Base fare", money(b.Offer.Price.Base, currency))
	row("Taxes", money(b.Offer.Price.Taxes, currency))
	row("Fees", money(b.Offer.Price.Fees, currency))

	pdf.SetFillColor(212, 168, 67)
	pdf.SetTextColor(13, 24, 37)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(55, 9, "TOTAL", "", 0, "L", true, 0, "")
	pdf.CellFormat(115, 9, money(b.TotalPrice, currency), "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	// ── Footer ────────────────────────────────────────────────
	pdf.SetY(-22)
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.3)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 8, "Times are local to each airport. Present your booking reference at check-in.",
		"", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output failed: %w", err)
	}
	return buf.Bytes(), nil
}

func flightLabel(s models.Segment) string {
	name := firstNonEmpty(s.CarrierName, s.CarrierCode)
	if s.FlightNumber == "" {
		return name
	}
	return s.FlightNumber + " " + name
}

func formatSegment(s models.Segment) string {
	dep := s.Departure.Airport
	if !s.Departure.Time.IsZero() {
		dep += " " + s.Departure.Time.Format("02 Jan 15:04")
	}
	arr := s.Arrival.Airport
	if !s.Arrival.Time.IsZero() {
		arr += " " + s.Arrival.Time.Format("02 Jan 15:04")
	}
	return dep + " -> " + arr
}

// humanDuration turns PT5H30M into 5h 30m.
func humanDuration(iso string) string {
	d, err := time.ParseDuration(strings.ToLower(strings.TrimPrefix(iso, "PT")))
	if err != nil {
		return iso
	}
	h, m := int(d.Hours()), int(d.Minutes())%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

func fmtDateReadable(iso string) string {
	t, err := time.Parse(models.DateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format("02 Jan 2006")
}

func money(v float64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%.2f %s", v, currency))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
