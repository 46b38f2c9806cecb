// Package recorder is the reporting side of the gateway: it keeps the request
// history, aggregate counters and metrics so that routing itself stays pure.
package recorder

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"edgegate/history"
	"edgegate/logger"
	"edgegate/notifier"
	"edgegate/router"
	"edgegate/store"
)

const (
	keyTotal       = "requests:total"
	keyRouted      = "requests:routed"
	keyRejected    = "requests:rejected"
	prefixRejected = "rejected:"
	prefixService  = "routed:"
	prefixAlerts   = "alerts:"
)

const (
	// DefaultAlertBurst is how many alerts per reason go out per AlertWindow.
	DefaultAlertBurst = 5
	AlertWindow       = time.Minute
)

type Stats struct {
	TotalRequests    int64            `json:"total_requests"`
	Routed           int64            `json:"routed"`
	Rejected         int64            `json:"rejected"`
	RejectedByReason map[string]int64 `json:"rejected_by_reason"`
	RoutedByService  map[string]int64 `json:"routed_by_service"`
	Services         int              `json:"services"`
	HistoryLen       int              `json:"history_len"`
	HistoryCap       int              `json:"history_cap"`
	RecordsAppended  uint64           `json:"records_appended"`
}

type Recorder struct {
	history    *history.Log
	store      store.Storer
	alerter    notifier.Alerter
	alertBurst int64
	services   int
}

type Option func(*Recorder)

// WithAlerter sends an alert for rejected requests, at most burst per reason
// in each AlertWindow. burst <= 0 uses DefaultAlertBurst.
func WithAlerter(a notifier.Alerter, burst int) Option {
	return func(r *Recorder) {
		r.alerter = a
		if burst <= 0 {
			burst = DefaultAlertBurst
		}
		r.alertBurst = int64(burst)
	}
}

func New(log *history.Log, s store.Storer, services int, opts ...Option) *Recorder {
	r := &Recorder{
		history:  log,
		store:    s,
		services: services,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) History() *history.Log {
	return r.history
}

// Inbound logs an envelope entering the gateway and counts it.
func (r *Recorder) Inbound(env router.Envelope) history.Record {
	rec := r.history.Append(history.KindInbound, env)
	HistoryRecords.Set(float64(r.history.Len()))
	r.incr(keyTotal)
	logger.Debug("Registered", "kind", rec.Kind, "id", rec.ID, "trace_id", rec.TraceID)
	return rec
}

// Outbound logs a response leaving the gateway.
func (r *Recorder) Outbound(resp any) history.Record {
	rec := r.history.Append(history.KindOutbound, resp)
	HistoryRecords.Set(float64(r.history.Len()))
	logger.Debug("Registered", "kind", rec.Kind, "id", rec.ID, "trace_id", rec.TraceID)
	return rec
}

// Decision counts the outcome of routing env and emits a status line.
func (r *Recorder) Decision(env router.Envelope, d router.Decision) {
	if d.IsRouted() {
		RoutingDecisions.WithLabelValues("routed", "").Inc()
		r.incr(keyRouted)
		r.incr(prefixService + d.ServiceName)
		logger.Info("Request routed", "service", d.ServiceName, "target", d.Target)
		return
	}

	reason := d.Reason.String()
	RoutingDecisions.WithLabelValues("rejected", reason).Inc()
	r.incr(keyRejected)
	r.incr(prefixRejected + reason)
	logger.Warn("Request rejected", "reason", reason, "message", d.Message(), "fields", len(env.Fields))

	if r.alerter != nil && r.allowAlert(reason) {
		r.alerter.Alert(d.Message(), "warning")
	}
}

// allowAlert counts alerts per reason in a window that expires in the store,
// so a flood of rejections sends a handful of alerts instead of one each.
func (r *Recorder) allowAlert(reason string) bool {
	n, err := r.store.Increment(prefixAlerts+reason, AlertWindow)
	if err != nil {
		logger.Error("Alert counter update failed", "reason", reason, "err", err)
		return false
	}
	if n == r.alertBurst+1 {
		logger.Warn("Alerts suppressed for the rest of the window", "reason", reason, "window", AlertWindow)
	}
	return n <= r.alertBurst
}

func (r *Recorder) ObserveLatency(service string, d time.Duration) {
	ProcessLatency.WithLabelValues(service).Observe(d.Seconds())
}

func (r *Recorder) incr(key string) {
	if _, err := r.store.Increment(key, 0); err != nil {
		logger.Error("Counter update failed", "key", key, "err", err)
	}
}

func (r *Recorder) Snapshot() (Stats, error) {
	st := Stats{
		Services:        r.services,
		HistoryLen:      r.history.Len(),
		HistoryCap:      r.history.Cap(),
		RecordsAppended: r.history.Appended(),
	}

	var err error
	if st.TotalRequests, err = r.store.GetCounter(keyTotal); err != nil {
		return Stats{}, fmt.Errorf("read %s: %w", keyTotal, err)
	}
	if st.Routed, err = r.store.GetCounter(keyRouted); err != nil {
		return Stats{}, fmt.Errorf("read %s: %w", keyRouted, err)
	}
	if st.Rejected, err = r.store.GetCounter(keyRejected); err != nil {
		return Stats{}, fmt.Errorf("read %s: %w", keyRejected, err)
	}
	if st.RejectedByReason, err = r.store.Counters(prefixRejected); err != nil {
		return Stats{}, fmt.Errorf("read rejections: %w", err)
	}
	if st.RoutedByService, err = r.store.Counters(prefixService); err != nil {
		return Stats{}, fmt.Errorf("read routed services: %w", err)
	}
	return st, nil
}

// Print writes the statistics report followed by the last n records.
func (r *Recorder) Print(w io.Writer, n int) error {
	st, err := r.Snapshot()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nGATEWAY STATISTICS\n")
	fmt.Fprintf(w, "   Total requests: %d\n", st.TotalRequests)
	fmt.Fprintf(w, "   Routed: %d\n", st.Routed)
	fmt.Fprintf(w, "   Rejected: %d\n", st.Rejected)
	for _, reason := range sortedKeys(st.RejectedByReason) {
		fmt.Fprintf(w, "      %s: %d\n", reason, st.RejectedByReason[reason])
	}
	fmt.Fprintf(w, "   Available services: %d\n", st.Services)
	fmt.Fprintf(w, "   History records: %d/%d\n", st.HistoryLen, st.HistoryCap)

	recs := r.history.Last(n)
	if len(recs) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nLAST %d RECORDS:\n", len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec.Data)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", rec.Data))
		}
		fmt.Fprintf(w, "   [%s] %s: %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Kind, data)
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders a one-line summary, handy in logs.
func (s Stats) String() string {
	return fmt.Sprintf("total=%d routed=%d rejected=%d services=%d history=%d/%d",
		s.TotalRequests, s.Routed, s.Rejected, s.Services, s.HistoryLen, s.HistoryCap)
}
