package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics summary endpoint.
type Summary struct {
	HTTP       httpSummary        `json:"http"`
	Storage    storageSummary     `json:"storage"`
	Rejections map[string]float64 `json:"rejections"`
	Exports    float64            `json:"exports"`
	RateLimit  rateLimitInfo      `json:"rateLimit"`
	DB         dbInfo             `json:"db"`
	Server     serverInfo         `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type storageSummary struct {
	Loads   float64 `json:"loads"`
	Saves   float64 `json:"saves"`
	Errors  float64 `json:"errors"`
	P95Load float64 `json:"p95Load"`
	P95Save float64 `json:"p95Save"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
}

// Handler returns an http.HandlerFunc that serves live metrics in JSON format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.Summarize()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Summarize gathers the registry and condenses it into a Summary.
func (m *Metrics) Summarize() (*Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	started := gaugeValue(fam["planner_server_start_time_seconds"])
	return &Summary{
		HTTP: httpSummary{
			TotalRequests: sumCounter(fam["planner_http_requests_total"]),
			ErrorRate:     computeErrorRate(fam["planner_http_requests_total"]),
			P50Latency:    histogramPercentile(fam["planner_http_request_duration_seconds"], 0.50),
			P95Latency:    histogramPercentile(fam["planner_http_request_duration_seconds"], 0.95),
			P99Latency:    histogramPercentile(fam["planner_http_request_duration_seconds"], 0.99),
		},
		Storage: storageSummary{
			Loads:   sumCounterWithLabel(fam["planner_storage_operations_total"], "op", "load"),
			Saves:   sumCounterWithLabel(fam["planner_storage_operations_total"], "op", "save"),
			Errors:  sumCounterWithLabel(fam["planner_storage_operations_total"], "status", "error"),
			P95Load: histogramPercentileWithLabel(fam["planner_storage_operation_duration_seconds"], 0.95, "op", "load"),
			P95Save: histogramPercentileWithLabel(fam["planner_storage_operation_duration_seconds"], 0.95, "op", "save"),
		},
		Rejections: countersByLabel(fam["planner_store_rejections_total"], "kind"),
		Exports:    sumCounter(fam["planner_board_exports_total"]),
		RateLimit: rateLimitInfo{
			Rejections: sumCounter(fam["planner_ratelimit_rejections_total"]),
		},
		DB: dbInfo{
			TotalConns:    gaugeValue(fam["planner_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["planner_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["planner_db_pool_acquired_conns"]),
		},
		Server: serverInfo{
			StartTime:     started,
			UptimeSeconds: float64(time.Now().Unix()) - started,
		},
	}, nil
}

// --- Prometheus metric helpers ---

func sumCounter(f *dto.MetricFamily) float64 {
	return sumCounterMatching(f, func(*dto.Metric) bool { return true })
}

func sumCounterWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	return sumCounterMatching(f, func(m *dto.Metric) bool { return hasLabel(m, labelName, labelValue) })
}

func sumCounterMatching(f *dto.MetricFamily, match func(*dto.Metric) bool) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if match(m) && m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

// countersByLabel sums a counter family per value of labelName.
func countersByLabel(f *dto.MetricFamily, labelName string) map[string]float64 {
	out := map[string]float64{}
	if f == nil {
		return out
	}
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		for _, lp := range m.GetLabel() {
			if lp.GetName() == labelName {
				out[lp.GetValue()] += m.GetCounter().GetValue()
			}
		}
	}
	return out
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetGauge() != nil {
		return ms[0].GetGauge().GetValue()
	}
	return 0
}

// computeErrorRate is the share of requests answered with a 4xx or 5xx.
func computeErrorRate(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total, errors float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" {
				code := lp.GetValue()
				if len(code) > 0 && code[0] >= '4' {
					errors += v
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errors / total
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	return histogramPercentileMatching(f, q, func(*dto.Metric) bool { return true })
}

func histogramPercentileWithLabel(f *dto.MetricFamily, q float64, labelName, labelValue string) float64 {
	return histogramPercentileMatching(f, q, func(m *dto.Metric) bool { return hasLabel(m, labelName, labelValue) })
}

// histogramPercentileMatching aggregates the buckets of every matching
// histogram and interpolates linearly within the bucket holding quantile q.
func histogramPercentileMatching(f *dto.MetricFamily, q float64, match func(*dto.Metric) bool) float64 {
	if f == nil {
		return 0
	}

	type bucket struct {
		upperBound      float64
		cumulativeCount uint64
	}
	var totalCount uint64
	bucketMap := make(map[float64]uint64)

	for _, m := range f.GetMetric() {
		if !match(m) {
			continue
		}
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			bucketMap[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}

	if totalCount == 0 {
		return 0
	}

	buckets := make([]bucket, 0, len(bucketMap))
	for ub, count := range bucketMap {
		buckets = append(buckets, bucket{upperBound: ub, cumulativeCount: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].upperBound < buckets[j].upperBound
	})

	rank := q * float64(totalCount)

	var prevBound float64
	var prevCount uint64
	for _, b := range buckets {
		if math.IsInf(b.upperBound, 1) {
			break
		}
		if float64(b.cumulativeCount) >= rank {
			bucketCount := b.cumulativeCount - prevCount
			if bucketCount == 0 {
				return b.upperBound
			}
			fraction := (rank - float64(prevCount)) / float64(bucketCount)
			return prevBound + fraction*(b.upperBound-prevBound)
		}
		prevBound = b.upperBound
		prevCount = b.cumulativeCount
	}

	// Past the last finite bucket.
	for i := len(buckets) - 1; i >= 0; i-- {
		if !math.IsInf(buckets[i].upperBound, 1) {
			return buckets[i].upperBound
		}
	}
	return 0
}
