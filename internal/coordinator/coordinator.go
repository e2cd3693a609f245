// Package coordinator owns one dashboard's view state and turns it into a
// rendered View by querying the backend and running the aggregation
// pipeline.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/ports"
	"fintrack/internal/view"
)

const DefaultChartWindow = 500

// ErrSuperseded is returned by a refresh whose result arrived after a newer
// refresh started. Its data is dropped.
var ErrSuperseded = errors.New("refresh superseded by a newer request")

type Phase int

const (
	Idle Phase = iota
	Loading
	Ready
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Filters are the user-controlled query constraints. Empty means none.
type Filters struct {
	Query    string
	Type     string
	Start    string
	End      string
	Category string
}

type State struct {
	Page     int
	PageSize int
	Filters  Filters
	Range    string
}

// Row is one table line with its category badge class.
type Row struct {
	core.Transaction
	Badge string
}

// View is everything the dashboard renders for one refresh.
type View struct {
	Generation  uint64
	State       State
	Rows        []Row
	KPIs        core.KPIs
	Summary     core.Summary
	ByCategory  []core.CategoryAmount
	OverTime    []core.Bucket
	Pagination  view.Pager
	Budget      float64
	BudgetLimit decimal.Decimal
	Empty       bool
}

// Presenter receives refresh outcomes.
type Presenter interface {
	Present(v View)
	ShowError(err error)
	RequireLogin()
}

// Source is the part of a backend the coordinator needs.
type Source interface {
	ports.TransactionQuerier
	ports.TransactionCreator
}

type Coordinator struct {
	mu          sync.Mutex
	source      Source
	presenter   Presenter
	state       State
	phase       Phase
	generation  uint64
	current     *View
	lastErr     error
	chartWindow int
	budget      decimal.Decimal
	today       func() core.Date
	logger      *applog.Logger
}

type Option func(*Coordinator)

func WithPageSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.state.PageSize = n
		}
	}
}

func WithChartWindow(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.chartWindow = n
		}
	}
}

func WithBudget(b decimal.Decimal) Option {
	return func(c *Coordinator) { c.budget = b }
}

func WithClock(today func() core.Date) Option {
	return func(c *Coordinator) { c.today = today }
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Coordinator) { c.logger = l.WithComponent(applog.ComponentCoordinator) }
}

func WithPresenter(p Presenter) Option {
	return func(c *Coordinator) { c.presenter = p }
}

// New starts in phase Idle on page 1 with the default quick range applied.
func New(source Source, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:      source,
		presenter:   nopPresenter{},
		state:       State{Page: 1, PageSize: view.DefaultPageSize},
		chartWindow: DefaultChartWindow,
		budget:      decimal.NewFromInt(60000),
		today:       core.Today,
		logger:      applog.Discard().WithComponent(applog.ComponentCoordinator),
	}
	for _, o := range opts {
		o(c)
	}
	c.applyRange(view.DefaultRange)
	return c
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Current returns the last successfully presented view, if any. A failed
// refresh does not replace it.
func (c *Coordinator) Current() (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return View{}, false
	}
	return *c.current, true
}

// Err returns the error of the last failed refresh, nil after a success.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SetFilters replaces the filters and goes back to page 1. An explicit
// start or end date overrides the quick range.
func (c *Coordinator) SetFilters(f Filters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.Query = strings.TrimSpace(f.Query)
	f.Category = strings.TrimSpace(f.Category)
	if f.Type != string(core.Income) && f.Type != string(core.Expense) {
		f.Type = ""
	}
	c.state.Filters = f
	c.state.Page = 1
}

// SetRange applies a quick range to the date filters and goes back to page 1.
func (c *Coordinator) SetRange(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyRange(name)
	c.state.Page = 1
}

func (c *Coordinator) applyRange(name string) {
	name = view.NormalizeRange(name)
	from, to := view.QuickRange(name, c.today())
	c.state.Range = name
	c.state.Filters.Start, c.state.Filters.End = "", ""
	if from != nil {
		c.state.Filters.Start = from.String()
	}
	if to != nil {
		c.state.Filters.End = to.String()
	}
}

// SetPage selects a page; values below 1 become 1. The upper bound is
// applied when the backend answers.
func (c *Coordinator) SetPage(p int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Page = max(1, p)
}

// Refresh fetches the page window and the chart window concurrently,
// derives the view and presents it. A refresh overtaken by a newer one
// returns ErrSuperseded and changes nothing.
func (c *Coordinator) Refresh(ctx context.Context) (View, error) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	st := c.state
	c.phase = Loading
	c.mu.Unlock()

	pageQ := st.query(st.Page, st.PageSize)
	chartQ := st.query(1, c.chartWindow)

	var page, chart ports.PageResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = c.source.QueryTransactions(gctx, pageQ)
		return err
	})
	g.Go(func() error {
		var err error
		chart, err = c.source.QueryTransactions(gctx, chartQ)
		return err
	})
	err := g.Wait()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "Dropping stale refresh", applog.FieldGeneration, gen)
		return View{}, ErrSuperseded
	}
	if err != nil {
		c.phase = Failed
		c.lastErr = err
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "Refresh failed", applog.FieldGeneration, gen, applog.FieldError, err)
		if errors.Is(err, core.ErrUnauthenticated) {
			c.presenter.RequireLogin()
		}
		c.presenter.ShowError(err)
		return View{}, err
	}

	v := c.derive(gen, st, page, chart)
	c.state.Page = v.Pagination.Page
	v.State.Page = v.Pagination.Page
	c.phase = Ready
	c.lastErr = nil
	c.current = &v
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "Refresh done",
		applog.FieldGeneration, gen,
		applog.FieldPage, v.Pagination.Page,
		"rows", len(v.Rows))
	c.presenter.Present(v)
	return v, nil
}

func (c *Coordinator) derive(gen uint64, st State, page, chart ports.PageResult) View {
	rows := make([]Row, len(page.Items))
	for i, t := range page.Items {
		rows[i] = Row{Transaction: t, Badge: view.Classify(t.Category)}
	}

	var kpis core.KPIs
	if page.KPIs != nil {
		kpis = *page.KPIs
	}
	kpis.Net = kpis.Income.Sub(kpis.Expense)

	summary := view.Summarize(chart.Items)
	if chart.Totals != nil {
		summary = *chart.Totals
		summary.Net = summary.Income.Sub(summary.Expense)
	}

	return View{
		Generation:  gen,
		State:       st,
		Rows:        rows,
		KPIs:        kpis,
		Summary:     summary,
		ByCategory:  view.ByCategory(chart.Items),
		OverTime:    view.ByTimeBucket(chart.Items, core.Month),
		Pagination:  view.NewPager(page.Page, page.Pages, page.Total),
		Budget:      view.BudgetUsage(kpis.Expense, c.budget),
		BudgetLimit: c.budget,
		Empty:       len(page.Items) == 0,
	}
}

// AddTransaction validates the draft locally, creates it and reloads from
// page 1. A validation error never reaches the backend. A failed reload is
// reported through the presenter; the created record is still returned.
func (c *Coordinator) AddTransaction(ctx context.Context, d core.DraftItem) (core.Transaction, error) {
	if !d.Date.Valid() {
		d.Date = c.today()
	}
	d.Category = strings.TrimSpace(d.Category)
	d.Description = strings.TrimSpace(d.Description)
	if err := d.ValidateEntry(); err != nil {
		return core.Transaction{}, err
	}
	d.Amount = d.Amount.Round(2)

	t, err := c.source.CreateTransaction(ctx, d)
	if err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			c.presenter.RequireLogin()
		}
		return core.Transaction{}, err
	}
	c.logger.InfoContext(ctx, "Transaction added",
		applog.Transaction(string(t.ID), string(t.Type), t.Amount, t.Category).Args()...)

	c.Reload(ctx)
	return t, nil
}

// Reload goes back to page 1 and refreshes, for use after writes.
func (c *Coordinator) Reload(ctx context.Context) {
	c.SetPage(1)
	if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		c.logger.WarnContext(ctx, "Reload after write failed", applog.FieldError, err)
	}
}

func (s State) query(page, size int) ports.Query {
	return ports.Query{
		Page:     page,
		PageSize: size,
		Q:        s.Filters.Query,
		Start:    s.Filters.Start,
		End:      s.Filters.End,
		Category: s.Filters.Category,
		Type:     s.Filters.Type,
	}
}

type nopPresenter struct{}

func (nopPresenter) Present(View)    {}
func (nopPresenter) ShowError(error) {}
func (nopPresenter) RequireLogin()   {}
