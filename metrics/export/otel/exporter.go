package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goWarden "github.com/MrEthical07/goWarden"
	"github.com/MrEthical07/goWarden/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("otel: nil meter")
	ErrNilSource = errors.New("otel: nil metrics source")
)

// Source is read once per collection. *goWarden.Engine satisfies it.
type Source interface {
	MetricsSnapshot() goWarden.MetricsSnapshot
	EventsDropped() uint64
}

type histogram struct {
	id      goWarden.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter keeps the callback registration alive; Close removes it.
type Exporter struct {
	source       Source
	registration metric.Registration

	counters   map[goWarden.MetricID]metric.Int64ObservableCounter
	histograms []histogram
	dropped    metric.Int64ObservableCounter

	// le attribute sets, one per bucket, built once.
	bounds [goWarden.HistogramBucketCount]metric.ObserveOption
}

// New registers the engine's counters with meter.
func New(meter metric.Meter, engine *goWarden.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewFromSource(meter, engine)
}

// NewFromSource registers one observable counter per engine counter, a
// cumulative bucket gauge labelled by le and a count gauge per histogram,
// and a single callback that snapshots source.
func NewFromSource(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[goWarden.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for i := range e.bounds {
		le := "+Inf"
		if i < len(internaldefs.HistogramBounds) {
			le = strconv.FormatFloat(internaldefs.HistogramBounds[i], 'g', -1, 64)
		}
		e.bounds[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel: counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("otel: histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("otel: histogram %s: %w", def.Name, err)
		}
		e.histograms = append(e.histograms, histogram{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter("warden_events_dropped_total",
		metric.WithDescription("Security events dropped because the dispatcher buffer was full."))
	if err != nil {
		return nil, fmt.Errorf("otel: events dropped counter: %w", err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}
	for _, h := range e.histograms {
		raw, ok := snap.Histograms[h.id]
		if !ok {
			continue
		}
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, v := range cum {
			o.ObserveInt64(h.buckets, int64(v), e.bounds[i])
		}
		o.ObserveInt64(h.count, int64(cum[len(cum)-1]))
	}
	o.ObserveInt64(e.dropped, int64(e.source.EventsDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
