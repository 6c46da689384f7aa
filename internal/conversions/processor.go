package conversions

import (
	"context"
	"fmt"
	"log/slog"

	"rankrent/internal/goals"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

// EventReader is the slice of the event store the processor needs.
type EventReader interface {
	EventsAfter(ctx context.Context, siteID uint, afterID uint, limit int) ([]tracking.TrackingEvent, error)
	SessionEvents(ctx context.Context, siteID uint, sessionIDs []string) ([]tracking.TrackingEvent, error)
	Events(ctx context.Context, siteID uint, rng timeframe.Range, sessionID string) ([]tracking.TrackingEvent, error)
}

type GoalSource interface {
	ActiveGoals(ctx context.Context, siteID uint) ([]goals.ConversionGoal, error)
}

// DefaultBatchSize bounds how many events one processor pass reads.
const DefaultBatchSize = 500

// ProcessResult summarizes one processor pass.
type ProcessResult struct {
	Scanned     int   `json:"scanned"`
	Recorded    int64 `json:"recorded"`
	LastEventID uint  `json:"last_event_id"`
}

// Processor turns newly appended events into stored conversions. Goals are
// read at processing time, so goal edits only affect events not yet processed.
type Processor struct {
	events    EventReader
	goals     GoalSource
	store     *Store
	matcher   *goals.Matcher
	logger    *slog.Logger
	batchSize int
}

func NewProcessor(events EventReader, goalSource GoalSource, store *Store, matcher *goals.Matcher, logger *slog.Logger, batchSize int) *Processor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Processor{
		events:    events,
		goals:     goalSource,
		store:     store,
		matcher:   matcher,
		logger:    logger,
		batchSize: batchSize,
	}
}

// ProcessSite matches one batch of events past the site's cursor. Whole
// sessions are replayed so per-visit scroll and dwell state is correct, but
// only the new events may produce conversions.
func (p *Processor) ProcessSite(ctx context.Context, siteID uint) (ProcessResult, error) {
	cursor, err := p.store.Cursor(ctx, siteID)
	if err != nil {
		return ProcessResult{}, err
	}

	batch, err := p.events.EventsAfter(ctx, siteID, cursor, p.batchSize)
	if err != nil {
		return ProcessResult{}, err
	}
	if len(batch) == 0 {
		return ProcessResult{LastEventID: cursor}, nil
	}
	last := batch[len(batch)-1].ID

	fresh := make(map[string]bool, len(batch))
	var sessionIDs []string
	seen := make(map[string]bool)
	var loose []tracking.TrackingEvent
	for _, ev := range batch {
		fresh[ev.EventID] = true
		if ev.SessionID == "" {
			loose = append(loose, ev)
			continue
		}
		if !seen[ev.SessionID] {
			seen[ev.SessionID] = true
			sessionIDs = append(sessionIDs, ev.SessionID)
		}
	}

	replay, err := p.events.SessionEvents(ctx, siteID, sessionIDs)
	if err != nil {
		return ProcessResult{}, err
	}
	replay = append(replay, loose...)

	matches, err := p.match(ctx, siteID, replay)
	if err != nil {
		return ProcessResult{}, err
	}

	var convs []Conversion
	for _, m := range matches {
		if fresh[m.Event.EventID] && m.Event.ID > cursor && m.Event.ID <= last {
			convs = append(convs, FromMatch(m))
		}
	}

	recorded, err := p.save(ctx, convs)
	if err != nil {
		return ProcessResult{}, err
	}
	if err := p.store.Advance(ctx, siteID, last); err != nil {
		return ProcessResult{}, err
	}

	p.logger.Info("Processed conversions",
		slog.Uint64("site_id", uint64(siteID)),
		slog.Int("scanned", len(batch)),
		slog.Int64("recorded", recorded),
		slog.Uint64("last_event_id", uint64(last)))
	return ProcessResult{Scanned: len(batch), Recorded: recorded, LastEventID: last}, nil
}

// Drain processes batches until the site's cursor reaches the newest event.
func (p *Processor) Drain(ctx context.Context, siteID uint) (ProcessResult, error) {
	var total ProcessResult
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := p.ProcessSite(ctx, siteID)
		if err != nil {
			return total, err
		}
		total.Scanned += res.Scanned
		total.Recorded += res.Recorded
		total.LastEventID = res.LastEventID
		if res.Scanned < p.batchSize {
			return total, nil
		}
	}
}

// Reprocess re-matches every event in rng against the current goals. Events
// that already have a conversion keep it.
func (p *Processor) Reprocess(ctx context.Context, siteID uint, rng timeframe.Range) (ProcessResult, error) {
	events, err := p.events.Events(ctx, siteID, rng, "")
	if err != nil {
		return ProcessResult{}, err
	}
	matches, err := p.match(ctx, siteID, events)
	if err != nil {
		return ProcessResult{}, err
	}
	convs := make([]Conversion, 0, len(matches))
	for _, m := range matches {
		convs = append(convs, FromMatch(m))
	}
	recorded, err := p.save(ctx, convs)
	if err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Scanned: len(events), Recorded: recorded}, nil
}

func (p *Processor) match(ctx context.Context, siteID uint, events []tracking.TrackingEvent) ([]goals.Match, error) {
	active, err := p.goals.ActiveGoals(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return p.matcher.MatchSession(events, active), nil
}

func (p *Processor) save(ctx context.Context, convs []Conversion) (int64, error) {
	recorded, err := p.store.Save(ctx, convs...)
	if err != nil {
		return 0, fmt.Errorf("processor: %w", err)
	}
	return recorded, nil
}
