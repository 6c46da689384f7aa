package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"rankrent/internal/timeframe"
)

// DailyPartial aggregates the sessions that started and the conversions that
// happened within day.
func DailyPartial(day timeframe.Range, in Input, loc *time.Location) *Partial {
	p := NewPartial(loc)
	for _, s := range in.Sessions {
		if day.Contains(s.EntryTime) {
			p.AddSession(s)
		}
	}
	for _, c := range in.Conversions {
		if day.Contains(c.CreatedAt) {
			p.AddConversion(c)
		}
	}
	return p
}

// AggregateDays computes one partial per day concurrently and merges them in
// day order. Items outside every day are ignored. Any failure fails the whole
// aggregate.
func AggregateDays(ctx context.Context, days []timeframe.Range, in Input, opts Options) (Report, error) {
	partials := make([]*Partial, len(days))
	g, gCtx := errgroup.WithContext(ctx)
	for i, day := range days {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return fmt.Errorf("aggregating %s: %w", day, err)
			}
			partials[i] = DailyPartial(day, in, opts.location())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	total := NewPartial(opts.location())
	for _, p := range partials {
		total.Merge(p)
	}
	return total.Report(in.SeenBefore, opts.topN()), nil
}
