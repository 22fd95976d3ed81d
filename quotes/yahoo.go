// Package quotes fetches market prices from public quote services.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	journal "github.com/etnz/stockjournal"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// YahooURL is the base URL of the Yahoo Finance chart API.
const YahooURL = "https://query1.finance.yahoo.com"

/*
	{
	  "chart": {
	    "result": [
	      {
	        "meta": {
	          "currency": "PKR",
	          "symbol": "OGDC.KA",
	          "regularMarketPrice": 221.5,
	          "longName": "Oil & Gas Development Company Limited",
	          "shortName": "OIL & GAS DEV CO"
	        }
	      }
	    ],
	    "error": null
	  }
	}
*/

// Yahoo is a journal.PriceProvider reading the Yahoo Finance chart API.
type Yahoo struct {
	// Suffix is appended to symbols to name them on Yahoo, ".KA" for the Pakistan Stock Exchange.
	Suffix   string
	Currency string

	client *resty.Client
	log    zerolog.Logger
}

// NewYahoo creates a provider querying baseURL, YahooURL if empty.
func NewYahoo(baseURL, suffix, currency string, logger zerolog.Logger) *Yahoo {
	if baseURL == "" {
		baseURL = YahooURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(15 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; stockjournal)")
	client.SetRetryCount(2)
	return &Yahoo{
		Suffix:   suffix,
		Currency: currency,
		client:   client,
		log:      logger.With().Str("component", "yahoo").Logger(),
	}
}

// Quotes fetches each symbol in turn. Symbols that fail are left out, an error
// is returned only if none succeeded.
func (y *Yahoo) Quotes(ctx context.Context, symbols []string) (map[string]journal.Quote, error) {
	res := make(map[string]journal.Quote, len(symbols))
	var errs error
	for _, s := range symbols {
		q, err := y.quote(ctx, journal.NormalizeSymbol(s))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			y.log.Warn().Err(err).Str("symbol", s).Msg("cannot fetch quote")
			errs = errors.Join(errs, err)
			continue
		}
		res[journal.NormalizeSymbol(s)] = q
	}
	if len(res) == 0 && errs != nil {
		return nil, errs
	}
	return res, nil
}

func (y *Yahoo) quote(ctx context.Context, symbol string) (journal.Quote, error) {
	ticker := symbol
	if y.Suffix != "" && !strings.HasSuffix(ticker, strings.ToUpper(y.Suffix)) {
		ticker += strings.ToUpper(y.Suffix)
	}
	resp, err := y.client.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParams(map[string]string{"interval": "1d", "range": "1d"}).
		Get("/v8/finance/chart/{ticker}")
	if err != nil {
		return journal.Quote{}, fmt.Errorf("error retrieving %q: %w", ticker, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return journal.Quote{}, fmt.Errorf("error retrieving %q: status %d", ticker, resp.StatusCode())
	}

	var jobj any
	if err := json.Unmarshal(resp.Body(), &jobj); err != nil {
		return journal.Quote{}, fmt.Errorf("cannot decode %q: %w", ticker, err)
	}
	price, ok := first("$.chart.result[0].meta.regularMarketPrice", jobj).(float64)
	if !ok || price <= 0 {
		return journal.Quote{}, fmt.Errorf("no market price for %q", ticker)
	}
	name, _ := first("$.chart.result[0].meta.longName", jobj).(string)
	if name == "" {
		name, _ = first("$.chart.result[0].meta.shortName", jobj).(string)
	}
	return journal.Quote{Price: journal.M(price, y.Currency), Company: name}, nil
}

// first evaluates path on jobj, keeping the first value if a list is returned.
func first(path string, jobj any) any {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil
	}
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return nil
		}
		return jlist[0]
	}
	return jval
}
