// Package prometheus records inbox metrics on a Prometheus registry and
// serves them in the text exposition format.
package prometheus

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/goliatone/go-inbox/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements core.MetricsRecorder. The service's metric families are
// registered up front with fixed label sets; any other name is registered on
// first use with the sorted keys of its first tag set.
type Recorder struct {
	registry *prom.Registry

	mu         sync.RWMutex
	counters   map[string]*labeledCounter
	histograms map[string]*labeledHistogram
}

type labeledCounter struct {
	vec    *prom.CounterVec
	labels []string
}

type labeledHistogram struct {
	vec    *prom.HistogramVec
	labels []string
}

type Option func(*Recorder)

// WithRegistry records on an existing registry instead of a fresh one.
func WithRegistry(registry *prom.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

func NewRecorder(opts ...Option) (*Recorder, error) {
	recorder := &Recorder{
		registry:   prom.NewRegistry(),
		counters:   map[string]*labeledCounter{},
		histograms: map[string]*labeledHistogram{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}

	if _, err := recorder.counter(core.MetricHTTPRequests,
		"Total HTTP requests by method, path, and status", []string{"method", "path", "status"}); err != nil {
		return nil, err
	}
	if _, err := recorder.counter(core.MetricWebhookRequests,
		"Total webhook requests by result", []string{"result"}); err != nil {
		return nil, err
	}
	if _, err := recorder.histogram(core.MetricHTTPRequestDuration,
		"HTTP request latency in seconds by method and path", []string{"method", "path"}); err != nil {
		return nil, err
	}
	return recorder, nil
}

func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry at /metrics.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	counter, err := r.counter(name, name, sortedKeys(tags))
	if err != nil {
		return
	}
	values, ok := labelValues(counter.labels, tags)
	if !ok {
		return
	}
	counter.vec.WithLabelValues(values...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	histogram, err := r.histogram(name, name, sortedKeys(tags))
	if err != nil {
		return
	}
	values, ok := labelValues(histogram.labels, tags)
	if !ok {
		return
	}
	histogram.vec.WithLabelValues(values...).Observe(value)
}

func (r *Recorder) counter(name, help string, labels []string) (*labeledCounter, error) {
	r.mu.RLock()
	existing, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return existing, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[name]; ok {
		return existing, nil
	}
	vec := prom.NewCounterVec(prom.CounterOpts{Name: name, Help: help}, labels)
	if err := r.registry.Register(vec); err != nil {
		return nil, err
	}
	created := &labeledCounter{vec: vec, labels: labels}
	r.counters[name] = created
	return created, nil
}

func (r *Recorder) histogram(name, help string, labels []string) (*labeledHistogram, error) {
	r.mu.RLock()
	existing, ok := r.histograms[name]
	r.mu.RUnlock()
	if ok {
		return existing, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.histograms[name]; ok {
		return existing, nil
	}
	vec := prom.NewHistogramVec(prom.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: prom.DefBuckets,
	}, labels)
	if err := r.registry.Register(vec); err != nil {
		return nil, err
	}
	created := &labeledHistogram{vec: vec, labels: labels}
	r.histograms[name] = created
	return created, nil
}

// labelValues orders tag values by the family's label names. A tag set with
// different keys is rejected rather than partially recorded.
func labelValues(labels []string, tags map[string]string) ([]string, bool) {
	if len(tags) != len(labels) {
		return nil, false
	}
	values := make([]string, 0, len(labels))
	for _, label := range labels {
		value, ok := tags[label]
		if !ok {
			return nil, false
		}
		values = append(values, value)
	}
	return values, true
}

func sortedKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var _ core.MetricsRecorder = (*Recorder)(nil)
