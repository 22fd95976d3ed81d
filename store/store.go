package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	journal "github.com/etnz/stockjournal"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Keys of the book parts.
const (
	KeyPortfolio = "portfolio"
	KeyCash      = "liquidCash"
	KeyStrategy  = "strategy"
	KeyHistory   = "analysisHistory"
	KeyTheme     = "theme"
	KeyCurrency  = "currency"
)

// ErrStaleRefresh is returned when a price refresh finished after the
// portfolio was cleared: its result is discarded.
var ErrStaleRefresh = errors.New("portfolio cleared during price refresh")

// ErrCurrencyMismatch is returned by Open when the journal was kept in
// another currency than the one requested.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Store is the typed state container: it owns a journal.Book, serializes
// access to it and writes it back to a KV after each update.
type Store struct {
	kv       KV
	currency string
	log      zerolog.Logger

	mu   sync.Mutex
	book *journal.Book
	gen  uint64 // incremented when the portfolio is cleared
}

// Open loads the book from kv. Amounts are in currency cur.
func Open(kv KV, cur string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		kv:       kv,
		currency: cur,
		log:      logger.With().Str("component", "store").Logger(),
	}
	book, err := s.load()
	if err != nil {
		return nil, err
	}
	s.book = book
	return s, nil
}

// View calls fn with the book. fn must not modify it nor keep a reference to it.
func (s *Store) View(fn func(b *journal.Book)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.book)
}

// Update calls fn with the book and saves it. If fn fails the book is
// reloaded from the last saved state.
func (s *Store) Update(fn func(b *journal.Book) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.book); err != nil {
		book, lerr := s.load()
		if lerr != nil {
			return errors.Join(err, fmt.Errorf("cannot restore book: %w", lerr))
		}
		s.book = book
		return err
	}
	return s.save()
}

// Clear removes every position. Any price refresh in flight is discarded.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.book.Clear()
	return s.save()
}

// RefreshPrices fetches quotes for the held symbols and applies them. The
// provider is called without holding the lock; if the portfolio was cleared
// meanwhile the quotes are dropped and ErrStaleRefresh is returned. On any
// error the prices already known are left untouched.
func (s *Store) RefreshPrices(ctx context.Context, p journal.PriceProvider) (int, error) {
	s.mu.Lock()
	symbols := s.book.Symbols()
	gen := s.gen
	s.mu.Unlock()

	if len(symbols) == 0 {
		return 0, nil
	}
	quotes, err := p.Quotes(ctx, symbols)
	if err != nil {
		s.log.Warn().Err(err).Strs("symbols", symbols).Msg("price refresh failed, keeping previous prices")
		return 0, fmt.Errorf("price refresh: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.log.Info().Int("quotes", len(quotes)).Msg("portfolio cleared during refresh, discarding quotes")
		return 0, ErrStaleRefresh
	}
	n := s.book.ApplyQuotes(quotes)
	s.log.Debug().Int("updated", n).Int("symbols", len(symbols)).Msg("prices refreshed")
	return n, s.save()
}

func (s *Store) save() error {
	b := s.book
	var errs error
	put := func(key string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("encode %s: %w", key, err))
			return
		}
		errs = errors.Join(errs, s.kv.Set(key, string(data)))
	}
	put(KeyPortfolio, b.Positions)
	put(KeyStrategy, b.Strategy)
	put(KeyHistory, b.History)
	errs = errors.Join(errs, s.kv.Set(KeyCash, b.Cash.Decimal().String()))
	errs = errors.Join(errs, s.kv.Set(KeyTheme, string(b.Theme)))
	errs = errors.Join(errs, s.kv.Set(KeyCurrency, b.Currency))
	return errs
}

// load reads every key. Absent keys keep the defaults of a new book, values
// that cannot be decoded are logged and replaced by defaults too.
func (s *Store) load() (*journal.Book, error) {
	b := journal.NewBook(s.currency)
	var errs error
	get := func(key string, v any) bool {
		raw, ok, err := s.kv.Get(key)
		if err != nil {
			errs = errors.Join(errs, err)
			return false
		}
		if !ok {
			return false
		}
		if err := json.Unmarshal([]byte(raw), v); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("corrupt value, using default")
			return false
		}
		return true
	}

	var positions []*journal.Position
	if get(KeyPortfolio, &positions) && positions != nil {
		b.Positions = positions
	}
	if err := s.checkCurrency(b.Positions); err != nil {
		return nil, err
	}
	for _, p := range b.Positions {
		p.In(s.currency)
	}
	var strategy journal.Strategy
	if get(KeyStrategy, &strategy) {
		if err := strategy.Validate(); err != nil {
			s.log.Warn().Err(err).Str("key", KeyStrategy).Msg("invalid strategy, using default")
		} else {
			b.Strategy = strategy
		}
	}
	var history []*journal.Analysis
	if get(KeyHistory, &history) && history != nil {
		b.History = history
	}

	if raw, ok, err := s.kv.Get(KeyCash); err != nil {
		errs = errors.Join(errs, err)
	} else if ok {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			s.log.Warn().Err(err).Str("key", KeyCash).Msg("corrupt value, using default")
		} else {
			b.Cash = journal.M(d, s.currency)
		}
	}
	if raw, ok, err := s.kv.Get(KeyTheme); err != nil {
		errs = errors.Join(errs, err)
	} else if ok {
		if t, err := journal.ParseTheme(raw); err == nil {
			b.Theme = t
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("cannot load journal: %w", errs)
	}
	return b, nil
}

// checkCurrency fails if the journal was saved in another currency. Journals
// saved before the currency was stored are checked against their positions.
func (s *Store) checkCurrency(positions []*journal.Position) error {
	raw, ok, err := s.kv.Get(KeyCurrency)
	if err != nil {
		return fmt.Errorf("cannot load journal: %w", err)
	}
	stored := strings.ToUpper(strings.TrimSpace(raw))
	if !ok || stored == "" {
		for _, p := range positions {
			if c := p.AvgCost.Currency(); c != "" {
				stored = c
				break
			}
		}
	}
	if stored != "" && stored != s.currency {
		return fmt.Errorf("journal is kept in %s, cannot open it in %s: %w", stored, s.currency, ErrCurrencyMismatch)
	}
	return nil
}
