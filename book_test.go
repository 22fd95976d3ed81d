package journal

import (
	"errors"
	"testing"
	"time"
)

func TestBook_RecordAdjustsCash(t *testing.T) {
	b := NewBook("TRY")
	b.SetCash(TRY(10000))

	if _, err := b.Record("thyao", BuyTx, Q(10), TRY(300), day(2025, time.February, 1)); err != nil {
		t.Fatalf("Record(buy) error = %v", err)
	}
	if !b.Cash.Equal(TRY(7000)) {
		t.Errorf("Cash after buy = %v, want 7000", b.Cash)
	}
	if _, err := b.Record("THYAO", SellTx, Q(4), TRY(350), day(2025, time.February, 2)); err != nil {
		t.Fatalf("Record(sell) error = %v", err)
	}
	if !b.Cash.Equal(TRY(8400)) {
		t.Errorf("Cash after sell = %v, want 8400", b.Cash)
	}
	if p := b.Position("thyao"); p == nil || !p.Shares.Equal(Q(6)) {
		t.Errorf("Position(thyao) = %+v, want 6 shares", p)
	}

	if _, err := b.Record("GARAN", SellTx, Q(1), TRY(1), time.Now()); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("selling an unknown symbol error = %v, want ErrUnknownSymbol", err)
	}
	if _, err := b.Record("THYAO", SellTx, Q(7), TRY(1), time.Now()); !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("overselling error = %v, want ErrInsufficientShares", err)
	}
	if !b.Cash.Equal(TRY(8400)) {
		t.Errorf("failed transactions changed the cash to %v", b.Cash)
	}
}

func TestBook_AddPosition(t *testing.T) {
	b := NewBook("TRY")
	price := TRY(42)
	if _, err := b.AddPosition("akbnk", Q(10), TRY(40), time.Now(), PositionInfo{Company: "Akbank", Sector: "Banking", Price: &price}); err != nil {
		t.Fatalf("AddPosition() error = %v", err)
	}
	if _, err := b.AddPosition("AKBNK", Q(10), TRY(50), time.Now(), PositionInfo{}); err != nil {
		t.Fatalf("AddPosition() again error = %v", err)
	}
	if len(b.Positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(b.Positions))
	}
	p := b.Positions[0]
	if !p.AvgCost.Equal(TRY(45)) || !p.Shares.Equal(Q(20)) {
		t.Errorf("got %v @ %v, want 20 @ 45", p.Shares, p.AvgCost)
	}
	if p.Company != "Akbank" || p.Sector != "Banking" || !p.Price().Equal(TRY(42)) {
		t.Errorf("descriptive fields lost: %+v", p)
	}
	if !b.Cash.IsZero() {
		t.Errorf("AddPosition changed the cash to %v", b.Cash)
	}
	if _, err := b.AddPosition(" ", Q(1), TRY(1), time.Now(), PositionInfo{}); err == nil {
		t.Errorf("AddPosition without symbol must fail")
	}
}

func TestBook_MergeRemoveClear(t *testing.T) {
	b := NewBook("TRY")
	b.SetCash(TRY(500))
	b.AddPosition("SISE", Q(10), TRY(100), day(2025, time.January, 1), PositionInfo{})

	imported := Aggregate([]SheetRow{
		{Symbol: "SISE", Quantity: Q(10), Cost: TRY(200)},
		{Symbol: "EREGL", Quantity: Q(5), Cost: TRY(40)},
	}, "TRY", day(2025, time.March, 1))
	if err := b.Merge(imported); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if p := b.Position("SISE"); !p.AvgCost.Equal(TRY(150)) || len(p.Transactions) != 2 {
		t.Errorf("SISE = %v @ %v with %d transactions, want 20 @ 150 with 2", p.Shares, p.AvgCost, len(p.Transactions))
	}
	if b.Position("EREGL") == nil {
		t.Errorf("EREGL was not imported")
	}
	if !b.Cash.Equal(TRY(500)) {
		t.Errorf("Merge changed the cash to %v", b.Cash)
	}

	if err := b.Remove("eregl"); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if err := b.Remove("EREGL"); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("Remove() twice error = %v, want ErrUnknownSymbol", err)
	}

	b.Clear()
	if len(b.Positions) != 0 {
		t.Errorf("Clear() left %d positions", len(b.Positions))
	}
	if !b.Cash.Equal(TRY(500)) {
		t.Errorf("Clear() changed the cash to %v", b.Cash)
	}
}

func TestBook_ApplyQuotes(t *testing.T) {
	b := NewBook("TRY")
	b.AddPosition("A", Q(1), TRY(10), time.Now(), PositionInfo{})
	b.AddPosition("B", Q(1), TRY(10), time.Now(), PositionInfo{})

	n := b.ApplyQuotes(map[string]Quote{
		"A": {Price: TRY(12), Company: "Alpha", Sector: "Tech"},
		"B": {Price: TRY(0)},
		"C": {Price: TRY(1)},
	})
	if n != 1 {
		t.Errorf("ApplyQuotes() = %d, want 1", n)
	}
	if a := b.Position("A"); !a.Price().Equal(TRY(12)) || a.Company != "Alpha" {
		t.Errorf("A = %+v", a)
	}
	if bb := b.Position("B"); bb.CurrentPrice != nil {
		t.Errorf("zero quote must be ignored, got %v", bb.CurrentPrice)
	}
}

func TestBook_Summary(t *testing.T) {
	b := NewBook("TRY")
	b.SetCash(TRY(250))
	pa, pb := TRY(30), TRY(5)
	b.AddPosition("A", Q(10), TRY(20), time.Now(), PositionInfo{Price: &pa})
	b.AddPosition("B", Q(20), TRY(10), time.Now(), PositionInfo{Price: &pb})
	b.AddPosition("C", Q(1), TRY(1), time.Now(), PositionInfo{})
	b.Record("C", SellTx, Q(1), TRY(1), time.Now())

	s := b.Summary()
	if len(s.Holdings) != 2 {
		t.Fatalf("got %d holdings, want 2 (closed positions skipped)", len(s.Holdings))
	}
	if !s.Value.Equal(TRY(400)) || !s.Cost.Equal(TRY(400)) || !s.Total.Equal(TRY(651)) {
		t.Errorf("value/cost/total = %v/%v/%v, want 400/400/651", s.Value, s.Cost, s.Total)
	}
	if !s.Holdings[0].Weight.Equal(75) || !s.Holdings[1].Weight.Equal(25) {
		t.Errorf("weights = %v, %v, want 75%%, 25%%", s.Holdings[0].Weight, s.Holdings[1].Weight)
	}
	if !s.Holdings[0].Return.Equal(50) || !s.Holdings[1].Return.Equal(-50) {
		t.Errorf("returns = %v, %v, want +50%%, -50%%", s.Holdings[0].Return, s.Holdings[1].Return)
	}
}

func TestBook_History(t *testing.T) {
	b := NewBook("TRY")
	if b.Latest() != nil {
		t.Fatalf("Latest() of an empty book must be nil")
	}
	first := NewAnalysis(time.UnixMilli(1000))
	second := NewAnalysis(time.UnixMilli(2000))
	b.AddAnalysis(first)
	b.AddAnalysis(second)
	if b.Latest() != second {
		t.Errorf("Latest() = %v, want the last added", b.Latest().ID)
	}
	if b.Analysis("1000") != first {
		t.Errorf("Analysis(1000) not found")
	}
}
