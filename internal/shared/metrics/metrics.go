package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	uploadsTotal            atomic.Uint64
	ragForwardFailedTotal   atomic.Uint64
	queriesTotal            atomic.Uint64
	queryFallbacksTotal     atomic.Uint64
	documentsClearedTotal   atomic.Uint64
	extractionFailedByKind  sync.Map // kind -> *atomic.Uint64
	extractionFailedOrdered = []string{"pdf", "docx", "eml", "email-text"}

	uploadDuration = newHistogram([]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000})
	queryDuration  = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncUpload counts a stored upload.
func IncUpload() {
	uploadsTotal.Add(1)
}

// IncExtractionFailed counts an extractor failure for the given kind.
func IncExtractionFailed(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	v, _ := extractionFailedByKind.LoadOrStore(kind, new(atomic.Uint64))
	v.(*atomic.Uint64).Add(1)
}

// IncRAGForwardFailed counts a document the retrieval service did not accept.
func IncRAGForwardFailed() {
	ragForwardFailedTotal.Add(1)
}

// IncQuery counts a received query.
func IncQuery() {
	queriesTotal.Add(1)
}

// IncQueryFallback counts a query answered with the fallback payload.
func IncQueryFallback() {
	queryFallbacksTotal.Add(1)
}

// AddDocumentsCleared adds n deleted document records.
func AddDocumentsCleared(n int) {
	if n <= 0 {
		return
	}
	documentsClearedTotal.Add(uint64(n))
}

// ObserveUploadDurationMs records an upload pipeline duration in milliseconds.
func ObserveUploadDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	uploadDuration.Observe(value)
}

// ObserveQueryDurationMs records a query round trip in milliseconds.
func ObserveQueryDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	queryDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "uploads_total", "Total documents stored", uploadsTotal.Load())
	writeLabeledCounter(&buf, "extraction_failed_total", "Extractor failures by kind", "kind", extractionFailures())
	writeCounter(&buf, "rag_forward_failed_total", "Documents the retrieval service rejected", ragForwardFailedTotal.Load())
	writeCounter(&buf, "queries_total", "Total queries received", queriesTotal.Load())
	writeCounter(&buf, "query_fallbacks_total", "Queries answered with the fallback payload", queryFallbacksTotal.Load())
	writeCounter(&buf, "documents_cleared_total", "Document records deleted", documentsClearedTotal.Load())
	writeHistogram(&buf, "upload_duration_ms", "Upload pipeline duration in milliseconds", uploadDuration.Snapshot())
	writeHistogram(&buf, "query_duration_ms", "Query duration in milliseconds", queryDuration.Snapshot())
	return buf.String()
}

type labeledValue struct {
	label string
	value uint64
}

func extractionFailures() []labeledValue {
	seen := map[string]bool{}
	var out []labeledValue
	for _, kind := range extractionFailedOrdered {
		seen[kind] = true
		var n uint64
		if v, ok := extractionFailedByKind.Load(kind); ok {
			n = v.(*atomic.Uint64).Load()
		}
		out = append(out, labeledValue{label: kind, value: n})
	}
	var extra []string
	extractionFailedByKind.Range(func(k, _ any) bool {
		if !seen[k.(string)] {
			extra = append(extra, k.(string))
		}
		return true
	})
	sort.Strings(extra)
	for _, kind := range extra {
		v, _ := extractionFailedByKind.Load(kind)
		out = append(out, labeledValue{label: kind, value: v.(*atomic.Uint64).Load()})
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values []labeledValue) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	for _, v := range values {
		fmt.Fprintf(buf, "%s{%s=\"%s\"} %d\n", name, label, v.label, v.value)
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
