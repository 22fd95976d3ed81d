package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/ai"
	"github.com/etnz/stockjournal/renderer"
	"github.com/etnz/stockjournal/store"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type state struct {
	Currency  string              `json:"currency"`
	Exchange  string              `json:"exchange"`
	Positions []*journal.Position `json:"portfolio"`
	Cash      journal.Money       `json:"liquidCash"`
	Strategy  journal.Strategy    `json:"strategy"`
	Theme     journal.Theme       `json:"theme"`
	History   []*journal.Analysis `json:"analysisHistory"`
	Summary   journal.Summary     `json:"summary"`
}

// snapshot encodes the whole state while holding the book.
func (s *Server) snapshot() ([]byte, error) {
	var data []byte
	var err error
	s.Store.View(func(b *journal.Book) {
		data, err = json.Marshal(state{
			Currency:  b.Currency,
			Exchange:  s.Exchange,
			Positions: b.Positions,
			Cash:      b.Cash,
			Strategy:  b.Strategy,
			Theme:     b.Theme,
			History:   b.History,
			Summary:   b.Summary(),
		})
	})
	return data, err
}

// changed pushes the new state to websocket clients and replies with it.
func (s *Server) changed(c *gin.Context, code int) {
	data, err := s.snapshot()
	if err != nil {
		fail(c, err)
		return
	}
	s.Hub.Send(EventState, json.RawMessage(data))
	c.Data(code, "application/json; charset=utf-8", data)
}

// update applies fn to the book and replies with the new state.
func (s *Server) update(c *gin.Context, code int, fn func(b *journal.Book) error) {
	if err := s.Store.Update(fn); err != nil {
		fail(c, err)
		return
	}
	s.changed(c, code)
}

func (s *Server) getState(c *gin.Context) {
	data, err := s.snapshot()
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

type positionInput struct {
	Symbol       string           `json:"symbol"`
	Shares       journal.Quantity `json:"shares"`
	Price        decimal.Decimal  `json:"price"` // average cost
	Company      string           `json:"company"`
	Sector       string           `json:"sector"`
	CurrentPrice *decimal.Decimal `json:"currentPrice"`
	Date         *time.Time       `json:"date"`
}

func (s *Server) date(d *time.Time) time.Time {
	if d == nil || d.IsZero() {
		return s.Now()
	}
	return *d
}

func (s *Server) addPosition(c *gin.Context) {
	var in positionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if journal.NormalizeSymbol(in.Symbol) == "" {
		badRequest(c, errors.New("symbol is required"))
		return
	}
	s.update(c, http.StatusCreated, func(b *journal.Book) error {
		info := journal.PositionInfo{Company: in.Company, Sector: in.Sector}
		if in.CurrentPrice != nil {
			p := journal.M(*in.CurrentPrice, b.Currency)
			info.Price = &p
		}
		_, err := b.AddPosition(in.Symbol, in.Shares, journal.M(in.Price, b.Currency), s.date(in.Date), info)
		return err
	})
}

func (s *Server) getPosition(c *gin.Context) {
	var data []byte
	var err error
	s.Store.View(func(b *journal.Book) {
		p := b.Position(c.Param("symbol"))
		if p == nil {
			err = fmt.Errorf("no position %q: %w", c.Param("symbol"), journal.ErrUnknownSymbol)
			return
		}
		data, err = json.Marshal(p)
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) removePosition(c *gin.Context) {
	s.update(c, http.StatusOK, func(b *journal.Book) error {
		return b.Remove(c.Param("symbol"))
	})
}

type transactionInput struct {
	Type   string           `json:"type"`
	Shares journal.Quantity `json:"shares"`
	Price  decimal.Decimal  `json:"price"`
	Date   *time.Time       `json:"date"`
}

func (s *Server) recordTransaction(c *gin.Context) {
	var in transactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	typ, err := journal.ParseTxType(in.Type)
	if err != nil {
		badRequest(c, err)
		return
	}
	s.update(c, http.StatusCreated, func(b *journal.Book) error {
		_, err := b.Record(c.Param("symbol"), typ, in.Shares, journal.M(in.Price, b.Currency), s.date(in.Date))
		return err
	})
}

func (s *Server) clearPortfolio(c *gin.Context) {
	if err := s.Store.Clear(); err != nil {
		fail(c, err)
		return
	}
	s.changed(c, http.StatusOK)
}

func (s *Server) setCash(c *gin.Context) {
	var in struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	s.update(c, http.StatusOK, func(b *journal.Book) error {
		b.SetCash(journal.M(in.Amount, b.Currency))
		return nil
	})
}

func (s *Server) setStrategy(c *gin.Context) {
	var in journal.Strategy
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := in.Validate(); err != nil {
		badRequest(c, err)
		return
	}
	if _, _, err := in.SignatureImage(); err != nil {
		badRequest(c, err)
		return
	}
	s.update(c, http.StatusOK, func(b *journal.Book) error {
		b.Strategy = in
		return nil
	})
}

func (s *Server) setTheme(c *gin.Context) {
	var in struct {
		Theme string `json:"theme"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	theme, err := journal.ParseTheme(in.Theme)
	if err != nil {
		badRequest(c, err)
		return
	}
	s.update(c, http.StatusOK, func(b *journal.Book) error {
		b.Theme = theme
		return nil
	})
}

func (s *Server) importSheet(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, fmt.Errorf("missing spreadsheet: %w", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	var cur string
	s.Store.View(func(b *journal.Book) { cur = b.Currency })
	report, err := journal.ImportSheet(fh.Filename, f, cur, s.Now())
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.Store.Update(func(b *journal.Book) error { return b.Merge(report.Positions) }); err != nil {
		fail(c, err)
		return
	}
	s.log.Info().Str("file", fh.Filename).Int("rows", report.Rows).Int("skipped", report.Skipped).Msg("spreadsheet imported")
	if data, err := s.snapshot(); err == nil {
		s.Hub.Send(EventState, json.RawMessage(data))
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) exportCSV(c *gin.Context) {
	var buf bytes.Buffer
	var err error
	s.Store.View(func(b *journal.Book) { err = journal.ExportCSV(&buf, b.Positions) })
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="portfolio.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) refresh(c *gin.Context) {
	if s.Prices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no price provider configured"})
		return
	}
	n, err := s.Store.RefreshPrices(c.Request.Context(), s.Prices)
	switch {
	case errors.Is(err, store.ErrStaleRefresh):
		c.JSON(http.StatusOK, gin.H{"updated": 0, "discarded": true})
		return
	case err != nil:
		// prices already known are kept
		c.JSON(http.StatusOK, gin.H{"updated": 0, "error": err.Error()})
		return
	}
	if data, err := s.snapshot(); err == nil {
		s.Hub.Send(EventState, json.RawMessage(data))
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (s *Server) listAnalyses(c *gin.Context) {
	var data []byte
	var err error
	s.Store.View(func(b *journal.Book) { data, err = json.Marshal(b.History) })
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) getAnalysis(c *gin.Context) {
	var data []byte
	var err error
	s.Store.View(func(b *journal.Book) {
		a := b.Analysis(c.Param("id"))
		if a == nil {
			return
		}
		data, err = json.Marshal(a)
	})
	if err != nil {
		fail(c, err)
		return
	}
	if data == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no analysis %q", c.Param("id"))})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// analyze runs both phases while the request is open, phases are pushed to
// websocket clients as they complete.
func (s *Server) analyze(c *gin.Context) {
	if s.Analyst == nil {
		fail(c, ai.ErrMissingAPIKey)
		return
	}
	var brief ai.Brief
	s.Store.View(func(b *journal.Book) { brief = ai.NewBrief(b, s.Exchange) })

	a, err := s.Analyst.Analyze(c.Request.Context(), brief, func(phase ai.Phase, partial *journal.Analysis, err error) {
		ev := gin.H{"phase": phase, "analysis": partial}
		if err != nil {
			ev["error"] = err.Error()
		}
		s.Hub.Send(EventProgress, ev)
	})
	if err != nil {
		if !errors.Is(err, ai.ErrMissingAPIKey) {
			err = fmt.Errorf("analysis failed: %w", err)
		}
		c.JSON(max(status(err), http.StatusBadGateway), gin.H{"error": err.Error()})
		return
	}
	if err := s.Store.Update(func(b *journal.Book) error { b.AddAnalysis(a); return nil }); err != nil {
		fail(c, err)
		return
	}
	s.Hub.Send(EventAnalysis, a)
	c.JSON(http.StatusCreated, a)
}

type rebalanceInput struct {
	Cash       *decimal.Decimal `json:"cash"`       // liquid cash if nil
	AnalysisID string           `json:"analysisId"` // latest if empty
	Targets    []journal.Target `json:"targets"`    // overrides the analysis
}

func (s *Server) rebalance(c *gin.Context) {
	var in rebalanceInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, err)
			return
		}
	}
	var plan *journal.RebalancePlan
	var err error
	s.Store.View(func(b *journal.Book) {
		targets := in.Targets
		if len(targets) == 0 {
			a := b.Latest()
			if in.AnalysisID != "" {
				a = b.Analysis(in.AnalysisID)
			}
			if a == nil {
				err = fmt.Errorf("no analysis to take target weights from: %w", errBadRequest)
				return
			}
			targets = a.Targets()
		}
		cash := b.Cash
		if in.Cash != nil {
			cash = journal.M(*in.Cash, b.Currency)
		}
		plan, err = journal.Rebalance(b.Summary().Holdings, targets, cash)
		if err != nil {
			err = fmt.Errorf("%w: %w", errBadRequest, err)
		}
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// project answers ?monthly=&return=&years= with a DCA projection starting
// from the current total. return defaults to the latest expected return.
func (s *Server) project(c *gin.Context) {
	monthly, err := decimal.NewFromString(c.DefaultQuery("monthly", "0"))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid monthly contribution: %w", err))
		return
	}
	years, err := strconv.Atoi(c.DefaultQuery("years", "10"))
	if err != nil || years < 0 || years > 100 {
		badRequest(c, fmt.Errorf("years must be between 0 and 100"))
		return
	}
	var points []journal.ProjectionPoint
	s.Store.View(func(b *journal.Book) {
		rate := 0.0
		if a := b.Latest(); a != nil && a.ExpectedReturn != nil {
			rate = *a.ExpectedReturn
		}
		if q := c.Query("return"); q != "" {
			if rate, err = strconv.ParseFloat(q, 64); err != nil {
				err = fmt.Errorf("invalid return: %w", err)
				return
			}
		}
		points = journal.ProjectDCA(b.Summary().Total, journal.M(monthly, b.Currency), journal.Percent(rate), years)
	})
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (s *Server) report() (*renderer.Report, journal.Theme) {
	var r *renderer.Report
	var theme journal.Theme
	s.Store.View(func(b *journal.Book) {
		r = renderer.NewReport(b, s.Exchange, s.Now())
		theme = b.Theme
	})
	return r, theme
}

func (s *Server) exportPDF(c *gin.Context) {
	r, _ := s.report()
	var buf bytes.Buffer
	if err := renderer.PDF(&buf, r); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", renderer.PDFFilename(r.Date)))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (s *Server) reportHTML(c *gin.Context) {
	r, theme := s.report()
	page, err := renderer.HTML(renderer.RenderReport(r), "Investment journal", theme)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
