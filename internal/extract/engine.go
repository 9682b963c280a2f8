package extract

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
)

// Engine turns recognized receipt lines into a Record. An Engine is safe for
// concurrent use; it holds only compiled rules and never mutates them.
type Engine struct {
	rules    *compiledRules
	logger   *slog.Logger
	now      func() time.Time
	parallel bool
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now for the calendar conversion band.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithParallel runs the date, merchant, total and item extractors
// concurrently. Results are identical to a sequential run.
func WithParallel(on bool) Option {
	return func(e *Engine) { e.parallel = on }
}

// NewEngine validates and compiles rules. Invalid rules return an error
// wrapping ErrConfiguration.
func NewEngine(rules Rules, opts ...Option) (*Engine, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		rules:  compiled,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// NewDefaultEngine builds an Engine on DefaultRules.
func NewDefaultEngine(opts ...Option) *Engine {
	e, err := NewEngine(DefaultRules(), opts...)
	if err != nil {
		panic("extract: default rules are invalid: " + err.Error())
	}
	return e
}

// ExtractText splits raw text on newlines and extracts from the lines.
func (e *Engine) ExtractText(raw string) Record {
	return e.Extract(LinesFromText(raw))
}

// ExtractFields implements FieldExtractor.
func (e *Engine) ExtractFields(ctx context.Context, lines []TextLine) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	return e.Extract(lines), nil
}

// Extract never fails: fields it cannot determine are left nil. Blank input
// yields a record with every field absent and zero confidence.
func (e *Engine) Extract(in []TextLine) Record {
	lines, raw := prepareLines(in)
	if len(lines) == 0 {
		return emptyRecord(raw)
	}

	cur := e.detectCurrency(lines)

	var (
		date     *time.Time
		merchant *string
		total    *decimal.Decimal
		items    []LineItem
	)
	if e.parallel {
		var g errgroup.Group
		g.Go(func() error { date = e.extractDate(lines); return nil })
		g.Go(func() error { merchant = e.resolveMerchant(lines); return nil })
		g.Go(func() error { total = e.extractTotal(lines, cur.code); return nil })
		g.Go(func() error { items = e.extractItems(lines); return nil })
		_ = g.Wait()
	} else {
		date = e.extractDate(lines)
		merchant = e.resolveMerchant(lines)
		total = e.extractTotal(lines, cur.code)
		items = e.extractItems(lines)
	}

	code := cur.code
	rec := Record{
		MerchantName:     merchant,
		TransactionDate:  date,
		CurrencyCode:     &code,
		TotalAmount:      total,
		LineItems:        items,
		RawText:          raw,
		CurrencyDetected: cur.detected,
		ReceiptType:      e.classify(lines),
		Description:      describe(merchant, items),
	}
	rec.Confidence = e.confidence(rec)

	e.logger.Debug("engine.extract.done",
		"lines", len(lines),
		"resolved", rec.ResolvedFields(),
		"currency", code,
		"currency_detected", cur.detected,
		"items", len(items),
		"confidence", rec.Confidence,
	)
	return rec
}

// confidence sums the weights of the resolved fields, capped at 1 and
// rounded to two decimals.
func (e *Engine) confidence(r Record) float64 {
	w := e.rules.weights
	sum := 0.0
	for _, f := range r.ResolvedFields() {
		switch f {
		case FieldDate:
			sum += w.Date
		case FieldAmount:
			sum += w.Amount
		case FieldMerchant:
			sum += w.Merchant
		case FieldCurrency:
			sum += w.Currency
		}
	}
	return math.Round(math.Min(sum, 1)*100) / 100
}

// NewEngineFromConfig loads cfg.RulesPath, or the built-in rules when it is
// empty, and applies the date order and calendar toggle on top.
func NewEngineFromConfig(cfg common.ExtractionConfig, logger *slog.Logger) (*Engine, error) {
	rules := DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := LoadRules(cfg.RulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	if cfg.DateOrder != "" {
		rules.Dates.Order = cfg.DateOrder
	}
	rules.Calendar.Enabled = cfg.CalendarConversion
	return NewEngine(rules, WithLogger(logger), WithParallel(cfg.Parallel))
}
