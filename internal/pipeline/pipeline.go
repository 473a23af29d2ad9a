// Package pipeline composes one run: extract, normalize, then persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sandy01030103/gold-price-etl/internal/alerting"
	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
	"github.com/Sandy01030103/gold-price-etl/internal/normalizer"
	"github.com/Sandy01030103/gold-price-etl/internal/storage"
)

// Outcome describes a run that reached the normalizer. Stored runs carry the
// row id; skipped runs carry the warning reason.
type Outcome struct {
	FetchTime time.Time
	Raw       extractor.Raw
	Status    normalizer.Status
	Reading   normalizer.Reading
	ID        int64
	Reason    string
}

// Stored reports whether a row was written.
func (o Outcome) Stored() bool { return o.Status == normalizer.StatusOK && o.ID > 0 }

// Options tune pipeline behaviour.
type Options struct {
	// SourceURL is only used to label notifications.
	SourceURL string
	// NotifyOnWarning also alerts on Warning runs, not just failed ones.
	NotifyOnWarning bool
}

// Pipeline wires an extractor to a store for a single run.
type Pipeline struct {
	extractor extractor.Extractor
	store     storage.ReadingStore
	notifier  alerting.Notifier
	opts      Options
	logger    zerolog.Logger
}

// New constructs a pipeline. notifier may be nil.
func New(ex extractor.Extractor, store storage.ReadingStore, notifier alerting.Notifier, opts Options, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		extractor: ex,
		store:     store,
		notifier:  notifier,
		opts:      opts,
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}
}

// RunOnce executes extract, normalize and, for OK results, insert. A
// *extractor.FetchError or *extractor.ParseError is returned as is. A Warning
// is not an error: the outcome is returned with nothing persisted.
func (p *Pipeline) RunOnce(ctx context.Context, fetchTime time.Time) (Outcome, error) {
	if p.extractor == nil || p.store == nil {
		return Outcome{}, fmt.Errorf("pipeline not configured")
	}

	raw, err := p.extractor.Extract(ctx)
	if err != nil {
		p.alert(ctx, classify(err), fetchTime, err.Error())
		return Outcome{FetchTime: fetchTime}, err
	}

	p.logger.Info().
		Str("shape", string(raw.Shape)).
		Str("price", raw.Price).
		Str("selling", raw.Selling).
		Str("buying", raw.Buying).
		Msg("fetched raw data")

	result := normalizer.Normalize(raw)
	outcome := Outcome{
		FetchTime: fetchTime,
		Raw:       raw,
		Status:    result.Status(),
		Reason:    result.Reason(),
	}

	reading, ok := result.Reading()
	if !ok {
		p.logger.Warn().Str("reason", outcome.Reason).Msg("validation failed, skipping insert")
		if p.opts.NotifyOnWarning {
			p.alert(ctx, alerting.KindWarning, fetchTime, outcome.Reason)
		}
		return outcome, nil
	}
	outcome.Reading = reading

	id, err := p.store.Insert(ctx, fetchTime, reading)
	if err != nil {
		p.alert(ctx, alerting.KindStorageError, fetchTime, err.Error())
		return outcome, err
	}
	outcome.ID = id

	p.logger.Info().Int64("id", id).Time("fetch_time", fetchTime).Msg("reading stored")
	return outcome, nil
}

func classify(err error) alerting.Kind {
	var parseErr *extractor.ParseError
	if errors.As(err, &parseErr) {
		return alerting.KindParseError
	}
	return alerting.KindFetchError
}

func (p *Pipeline) alert(ctx context.Context, kind alerting.Kind, fetchTime time.Time, detail string) {
	if p.notifier == nil {
		return
	}
	note := alerting.Notification{
		Kind:      kind,
		FetchTime: fetchTime,
		URL:       p.opts.SourceURL,
		Detail:    detail,
	}
	if err := p.notifier.Notify(ctx, note); err != nil {
		p.logger.Error().Err(err).Str("kind", string(kind)).Msg("failed to dispatch alert")
	}
}
