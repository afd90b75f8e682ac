package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fightcard/internal/cost"
	"github.com/sells-group/fightcard/internal/model"
	"github.com/sells-group/fightcard/internal/resilience"
	"github.com/sells-group/fightcard/pkg/serper"
)

const (
	defaultSearchResults     = 5
	defaultSearchConcurrency = 4
)

// SearchConfig configures web search augmentation for the news analyst.
type SearchConfig struct {
	// Results is the number of organic hits kept per fight.
	Results     int
	Concurrency int
	// TimeRange is passed to the search API, e.g. "qdr:w".
	TimeRange string
	Retry     resilience.RetryConfig
	Rates     cost.Rates
	// NewClient builds a search client for an API key.
	NewClient func(key string) serper.Client
}

// Searcher gathers recent web results for every fight on a card.
type Searcher struct {
	cfg  SearchConfig
	calc *cost.Calculator
}

// NewSearcher creates a Searcher.
func NewSearcher(cfg SearchConfig) *Searcher {
	if cfg.Results <= 0 {
		cfg.Results = defaultSearchResults
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSearchConcurrency
	}
	if cfg.NewClient == nil {
		cfg.NewClient = func(key string) serper.Client { return serper.NewClient(key) }
	}
	if cfg.Rates.Models == nil {
		cfg.Rates = cost.DefaultRates()
	}
	cfg.Retry.ShouldRetry = func(err error) bool {
		var apiErr *serper.APIError
		if errors.As(err, &apiErr) {
			return resilience.IsTransientStatus(apiErr.StatusCode)
		}
		return resilience.IsTransient(err)
	}
	return &Searcher{cfg: cfg, calc: cost.NewCalculator(cfg.Rates)}
}

// SearchQuery is the query issued for one fight.
func SearchQuery(f model.Fight) string {
	return fmt.Sprintf("%s vs %s UFC news injury weigh-in", f.Fighter1, f.Fighter2)
}

// Context searches every fight and renders the hits as prompt text. A
// failed search is logged and that fight is left out. It returns "" when
// nothing was found.
func (s *Searcher) Context(ctx context.Context, card *model.Card, key string) string {
	if key == "" {
		zap.L().Warn("analysis: web search requested but no serper key is configured")
		return ""
	}
	client := s.cfg.NewClient(key)

	hits := make([][]serper.Result, len(card.Fights))
	var mu sync.Mutex
	queries := 0

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, f := range card.Fights {
		g.Go(func() error {
			req := serper.SearchRequest{Query: SearchQuery(f), Num: s.cfg.Results, TimeRange: s.cfg.TimeRange}
			resp, err := resilience.Retry(gCtx, s.cfg.Retry, func(ctx context.Context) (*serper.SearchResponse, error) {
				mu.Lock()
				queries++
				mu.Unlock()
				return client.Search(ctx, req)
			})
			if err != nil {
				zap.L().Warn("analysis: web search failed",
					zap.String("fight_id", f.FightID),
					zap.Error(err),
				)
				return nil
			}
			hits[i] = topResults(resp, s.cfg.Results)
			return nil
		})
	}
	_ = g.Wait()

	usd := s.calc.SerperQueries(queries)
	zap.L().Info("cost attribution",
		zap.String("provider", "serper"),
		zap.Int("queries", queries),
		zap.Float64("estimated_cost_usd", usd),
	)

	return renderSearch(card.Fights, hits)
}

func topResults(resp *serper.SearchResponse, n int) []serper.Result {
	all := append(append([]serper.Result{}, resp.News...), resp.Organic...)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func renderSearch(fights []model.Fight, hits [][]serper.Result) string {
	var b strings.Builder
	for i, f := range fights {
		if len(hits[i]) == 0 {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("Recent web search results:\n")
		}
		fmt.Fprintf(&b, "\nFight %s (%s):\n", f.FightID, f.Matchup())
		for _, h := range hits[i] {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", h.Title, h.Snippet, h.Link)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
