package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/metrics"
)

// FilterValidator re-checks filters restored from cursors.
type FilterValidator interface {
	Revalidate(ctx context.Context, f domain.Filter) (domain.Filter, error)
}

// Paginator windows a RecordSource into pages of at most Filter.Limit
// datasets. The source is asked for one extra record to learn whether
// another page exists.
type Paginator struct {
	source    domain.RecordSource
	codec     *CursorCodec
	validator FilterValidator
	metrics   *metrics.Provider
	logger    *zap.Logger
}

// NewPaginator creates a Paginator. m may be nil.
func NewPaginator(
	source domain.RecordSource,
	codec *CursorCodec,
	validator FilterValidator,
	m *metrics.Provider,
	logger *zap.Logger,
) *Paginator {
	return &Paginator{
		source:    source,
		codec:     codec,
		validator: validator,
		metrics:   m,
		logger:    logger,
	}
}

// FirstPage returns the first page of datasets matching f.
func (p *Paginator) FirstPage(ctx context.Context, f domain.Filter) (*domain.Page, error) {
	page, err := p.fetch(ctx, f, nil)
	if err != nil {
		return nil, err
	}
	p.metrics.ObservePage(true, len(page.Datasets), !page.HasMore())
	return page, nil
}

// NextPage resumes the traversal recorded in token.
func (p *Paginator) NextPage(ctx context.Context, token string) (*domain.Page, error) {
	cur, err := p.codec.Decode(token)
	if err != nil {
		p.rejected(err)
		return nil, err
	}

	f, err := p.validator.Revalidate(ctx, cur.Filter)
	if err != nil {
		var fe *domain.FilterError
		if errors.As(err, &fe) {
			cerr := &domain.CursorError{Reason: ReasonStale, Err: err}
			p.rejected(cerr)
			return nil, cerr
		}
		return nil, err
	}

	after := cur.After
	page, err := p.fetch(ctx, f, &after)
	if err != nil {
		return nil, err
	}
	p.metrics.ObservePage(false, len(page.Datasets), !page.HasMore())
	return page, nil
}

func (p *Paginator) fetch(ctx context.Context, f domain.Filter, after *domain.SortKey) (*domain.Page, error) {
	if f.Limit < 1 {
		return nil, domain.InvalidFilter("limit", "must be a positive integer, got %d", f.Limit)
	}

	start := time.Now()
	rows, err := p.source.Query(ctx, f, after, f.Limit+1)
	p.metrics.ObserveSourceQuery(time.Since(start))
	if err != nil {
		var se *domain.SourceError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &domain.SourceError{Op: "query", Err: err}
	}

	if err := checkOrder(rows, after); err != nil {
		p.logger.Error("record source broke ordering contract", zap.Error(err))
		return nil, err
	}

	page := &domain.Page{Datasets: rows, Filter: f}
	if len(rows) > f.Limit {
		page.Datasets = rows[:f.Limit]
		last := page.Datasets[len(page.Datasets)-1].Key()
		token, err := p.codec.Encode(f, last)
		if err != nil {
			return nil, fmt.Errorf("issuing cursor: %w", err)
		}
		page.NextCursor = token
	}

	p.logger.Debug("page served",
		zap.String("product", f.Product),
		zap.Int("limit", f.Limit),
		zap.Int("returned", len(page.Datasets)),
		zap.Bool("has_more", page.HasMore()),
		zap.String("filter_fingerprint", p.codec.FingerprintString(f)),
	)

	return page, nil
}

// checkOrder verifies rows are strictly ascending and strictly after the
// resume key.
func checkOrder(rows []*domain.Dataset, after *domain.SortKey) error {
	prev := after
	for i, r := range rows {
		k := r.Key()
		if prev != nil && !prev.Less(k) {
			return &domain.SourceError{
				Op:  "query",
				Err: fmt.Errorf("row %d (%s) is not after %s/%s", i, r.ID, prev.CenterTime.Format(time.RFC3339Nano), prev.ID),
			}
		}
		prev = &k
	}
	return nil
}

func (p *Paginator) rejected(err error) {
	var ce *domain.CursorError
	if errors.As(err, &ce) {
		p.metrics.ObserveCursorRejected(ce.Reason)
		p.logger.Warn("cursor rejected", zap.String("reason", ce.Reason), zap.Error(err))
	}
}
