package renderer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	journal "github.com/etnz/stockjournal"
	"github.com/go-pdf/fpdf"
)

// Page layout, in millimeters on A4 portrait.
const (
	pageBreakY = 270.0 // a new page starts when the cursor passes this line
	marginX    = 10.0
	lineH      = 6.0
	rowH       = 7.0
	sigWidth   = 50.0
)

var holdingCols = []struct {
	title string
	width float64
	align string
}{
	{"Symbol", 25, "L"},
	{"Shares", 22, "R"},
	{"Avg cost", 30, "R"},
	{"Price", 30, "R"},
	{"Value", 37, "R"},
	{"Return", 23, "R"},
	{"Weight", 23, "R"},
}

// PDFFilename is the download name of the report generated on t.
func PDFFilename(t time.Time) string {
	return "stockjournal-report-" + t.Format(time.DateOnly) + ".pdf"
}

// PDF writes r as an A4 document.
func PDF(w io.Writer, r *Report) error {
	pdf, err := newPDF(r)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

type pdfWriter struct {
	*fpdf.Fpdf
	tr func(string) string
}

func newPDF(r *Report) (*fpdf.Fpdf, error) {
	f := fpdf.New("P", "mm", "A4", "")
	f.SetMargins(marginX, 15, marginX)
	f.SetAutoPageBreak(false, 0)
	f.SetTitle("Investment journal "+r.Date.Format(time.DateOnly), true)
	f.SetCreator("stockjournal", true)
	p := &pdfWriter{Fpdf: f, tr: f.UnicodeTranslatorFromDescriptor("")}
	p.AddPage()

	p.SetFont("Helvetica", "B", 18)
	p.CellFormat(0, 10, p.tr("Investment journal"), "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.CellFormat(0, lineH, p.tr(fmt.Sprintf("%s, %s", r.Exchange, r.Date.Format(time.DateOnly))), "", 1, "L", false, 0, "")
	p.Ln(4)

	p.summary(r.Summary)
	p.strategy(r.Strategy)
	p.holdings(r.Summary.Holdings)
	if r.Analysis != nil {
		p.analysis(r.Analysis)
	}
	return f, f.Error()
}

// ensure starts a new page if h more millimeters would pass the break line.
func (p *pdfWriter) ensure(h float64) bool {
	if p.GetY()+h > pageBreakY {
		p.AddPage()
		return true
	}
	return false
}

func (p *pdfWriter) heading(s string) {
	p.ensure(12 + rowH)
	p.Ln(3)
	p.SetFont("Helvetica", "B", 14)
	p.CellFormat(0, 9, p.tr(s), "B", 1, "L", false, 0, "")
	p.Ln(2)
	p.SetFont("Helvetica", "", 10)
}

func (p *pdfWriter) line(label, value string) {
	p.ensure(lineH)
	p.SetFont("Helvetica", "B", 10)
	p.CellFormat(50, lineH, p.tr(label), "", 0, "L", false, 0, "")
	p.SetFont("Helvetica", "", 10)
	p.CellFormat(0, lineH, p.tr(value), "", 1, "L", false, 0, "")
}

// text writes a wrapped paragraph, line by line so that page breaks apply.
func (p *pdfWriter) text(s string) {
	width, _ := p.GetPageSize()
	width -= 2 * marginX
	for _, l := range p.SplitLines([]byte(p.tr(s)), width) {
		p.ensure(lineH)
		p.CellFormat(0, lineH, string(l), "", 1, "L", false, 0, "")
	}
}

func (p *pdfWriter) summary(s journal.Summary) {
	p.heading("Summary")
	p.line("Invested value", amount(s.Value))
	p.line("Cost basis", amount(s.Cost))
	p.line("Unrealized gain", amount(s.Gain)+" ("+s.Return.SignedString()+")")
	p.line("Liquid cash", amount(s.Cash))
	p.line("Total", amount(s.Total))
}

func (p *pdfWriter) strategy(s journal.Strategy) {
	p.heading("Strategy")
	p.line("Goal", string(s.Goal))
	p.line("Risk tolerance", string(s.Risk))
	p.line("Horizon", fmt.Sprintf("%d years", s.HorizonYears))
	if notes := strings.TrimSpace(s.Notes); notes != "" {
		p.Ln(2)
		p.SetFont("Helvetica", "I", 10)
		p.text(notes)
		p.SetFont("Helvetica", "", 10)
	}
	img, typ, err := s.SignatureImage()
	if err != nil || img == nil {
		return
	}
	info := p.RegisterImageOptionsReader("signature", fpdf.ImageOptions{ImageType: typ, ReadDpi: true}, bytes.NewReader(img))
	if info == nil || p.Err() {
		return
	}
	h := sigWidth * info.Height() / info.Width()
	p.ensure(h + 10)
	p.Ln(4)
	p.ImageOptions("signature", marginX, p.GetY(), sigWidth, h, false, fpdf.ImageOptions{ImageType: typ}, 0, "")
	p.SetY(p.GetY() + h)
	p.SetFont("Helvetica", "", 8)
	p.CellFormat(sigWidth, 5, p.tr("Signed"), "T", 1, "C", false, 0, "")
	p.SetFont("Helvetica", "", 10)
}

func (p *pdfWriter) holdingsHeader() {
	p.SetFont("Helvetica", "B", 10)
	p.SetFillColor(230, 230, 230)
	for _, c := range holdingCols {
		p.CellFormat(c.width, rowH, p.tr(c.title), "1", 0, c.align, true, 0, "")
	}
	p.Ln(-1)
	p.SetFont("Helvetica", "", 10)
}

func (p *pdfWriter) holdings(hs []journal.Holding) {
	p.heading("Holdings")
	if len(hs) == 0 {
		p.text("No open position.")
		return
	}
	p.holdingsHeader()
	for _, h := range hs {
		if p.ensure(rowH) {
			p.holdingsHeader()
		}
		cells := []string{h.Symbol, h.Shares.String(), amount(h.AvgCost), amount(h.Price), amount(h.Value), h.Return.SignedString(), h.Weight.String()}
		for i, c := range holdingCols {
			p.CellFormat(c.width, rowH, p.tr(cells[i]), "1", 0, c.align, false, 0, "")
		}
		p.Ln(-1)
	}
}

func (p *pdfWriter) analysis(a *journal.Analysis) {
	p.heading("Analysis of " + a.GeneratedAt.Format(time.DateOnly))
	if a.HealthScore != nil {
		p.line("Health score", fmt.Sprintf("%.0f/100", *a.HealthScore))
	}
	if a.AlignmentScore != nil {
		p.line("Strategy alignment", fmt.Sprintf("%.0f/100", *a.AlignmentScore))
	}
	if a.Sentiment != "" {
		p.line("Market sentiment", a.Sentiment)
	}
	if a.ExpectedReturn != nil {
		p.line("Expected return", fmt.Sprintf("%.1f%% a year", *a.ExpectedReturn))
	}
	if a.Summary != "" {
		p.Ln(2)
		p.text(a.Summary)
	}
	if len(a.Actions) > 0 {
		p.heading("Actions")
		for _, ac := range a.Actions {
			p.text(fmt.Sprintf("%s: %s. %s", ac.Symbol, strings.ToUpper(ac.Action), ac.Rationale))
		}
	}
	if len(a.Rebalancing) > 0 {
		p.heading("Target weights")
		for _, s := range a.Rebalancing {
			p.line(s.Symbol, fmt.Sprintf("%.1f%% to %.1f%% %s", s.CurrentWeight, s.TargetWeight, s.Action))
		}
	}
	if len(a.TailRisks) > 0 {
		p.heading("Tail risks")
		for _, t := range a.TailRisks {
			p.text(fmt.Sprintf("%s (%.1f%%, %+.1f%%): %s", t.Name, t.Probability, t.Impact, t.Description))
		}
	}
}

// amount formats m with its currency code, core PDF fonts lack most currency symbols.
func amount(m journal.Money) string {
	s := m.Decimal().StringFixed(2)
	if m.Currency() != "" {
		s += " " + m.Currency()
	}
	return s
}
