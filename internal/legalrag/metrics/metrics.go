// Package metrics 收集问答服务的业务指标，并以 Prometheus 文本格式导出。
package metrics

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics 问答服务业务指标。
type Metrics struct {
	// 查询
	queries     atomic.Uint64
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
	queryErrors atomic.Uint64

	// 检索 (embed + search)
	retrievals      atomic.Uint64
	retrievalErrors atomic.Uint64

	// LLM
	llmCalls            atomic.Uint64
	llmErrors           atomic.Uint64
	llmTokensPrompt     atomic.Uint64
	llmTokensCompletion atomic.Uint64

	// 索引与删除
	resourcesIndexed atomic.Uint64
	chunksIndexed    atomic.Uint64
	indexErrors      atomic.Uint64
	resourcesDeleted atomic.Uint64
	recordsDeleted   atomic.Uint64

	durationMu        sync.Mutex
	retrievalDuration float64
	llmDuration       float64
	startTime         time.Time
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// New creates an empty metrics set.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// Default 返回进程级共享的指标实例。
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// RecordQuery 记录一次查询。
func (m *Metrics) RecordQuery(cacheHit bool, err error) {
	m.queries.Add(1)
	switch {
	case err != nil:
		m.queryErrors.Add(1)
	case cacheHit:
		m.cacheHits.Add(1)
	default:
		m.cacheMisses.Add(1)
	}
}

// RecordRetrieval 记录一次检索。
func (m *Metrics) RecordRetrieval(d time.Duration, err error) {
	m.retrievals.Add(1)
	if err != nil {
		m.retrievalErrors.Add(1)
		return
	}
	m.durationMu.Lock()
	m.retrievalDuration += d.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall 记录一次 LLM 调用。
func (m *Metrics) RecordLLMCall(d time.Duration, promptTokens, completionTokens int, err error) {
	m.llmCalls.Add(1)
	if err != nil {
		m.llmErrors.Add(1)
		return
	}
	m.durationMu.Lock()
	m.llmDuration += d.Seconds()
	m.durationMu.Unlock()

	if promptTokens > 0 {
		m.llmTokensPrompt.Add(uint64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensCompletion.Add(uint64(completionTokens))
	}
}

// RecordIndexing 记录一次资源入库。
func (m *Metrics) RecordIndexing(chunks int, err error) {
	if err != nil {
		m.indexErrors.Add(1)
		return
	}
	m.resourcesIndexed.Add(1)
	m.chunksIndexed.Add(uint64(chunks))
}

// RecordDeletion 记录一次资源删除及其删除的记录数。
func (m *Metrics) RecordDeletion(records int) {
	m.resourcesDeleted.Add(1)
	m.recordsDeleted.Add(uint64(records))
}

type sample struct {
	name, help, kind string
	value            string
}

func (m *Metrics) samples() []sample {
	m.durationMu.Lock()
	retrievalDuration, llmDuration := m.retrievalDuration, m.llmDuration
	uptime := time.Since(m.startTime).Seconds()
	m.durationMu.Unlock()

	hits, misses := m.cacheHits.Load(), m.cacheMisses.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	counter := func(name, help string, v uint64) sample {
		return sample{name: name, help: help, kind: "counter", value: fmt.Sprintf("%d", v)}
	}

	return []sample{
		counter("queries_total", "Total number of questions answered.", m.queries.Load()),
		counter("queries_cache_hits_total", "Number of query cache hits.", hits),
		counter("queries_cache_misses_total", "Number of query cache misses.", misses),
		counter("queries_errors_total", "Number of failed queries.", m.queryErrors.Load()),
		{name: "cache_hit_rate", help: "Query cache hit rate (0-1).", kind: "gauge", value: fmt.Sprintf("%.4f", hitRate)},
		counter("retrieval_total", "Total number of retrievals.", m.retrievals.Load()),
		{name: "retrieval_duration_seconds_total", help: "Total retrieval duration.", kind: "counter", value: fmt.Sprintf("%.6f", retrievalDuration)},
		counter("retrieval_errors_total", "Number of retrieval errors.", m.retrievalErrors.Load()),
		counter("llm_calls_total", "Total number of LLM calls.", m.llmCalls.Load()),
		{name: "llm_calls_duration_seconds_total", help: "Total LLM call duration.", kind: "counter", value: fmt.Sprintf("%.6f", llmDuration)},
		counter("llm_calls_errors_total", "Number of LLM call errors.", m.llmErrors.Load()),
		counter("llm_tokens_prompt_total", "Total prompt tokens.", m.llmTokensPrompt.Load()),
		counter("llm_tokens_completion_total", "Total completion tokens.", m.llmTokensCompletion.Load()),
		counter("resources_indexed_total", "Total resources ingested.", m.resourcesIndexed.Load()),
		counter("chunks_indexed_total", "Total chunks written to the vector store.", m.chunksIndexed.Load()),
		counter("index_errors_total", "Number of failed ingestions.", m.indexErrors.Load()),
		counter("resources_deleted_total", "Total resources deleted.", m.resourcesDeleted.Load()),
		counter("records_deleted_total", "Total vector records deleted.", m.recordsDeleted.Load()),
		{name: "uptime_seconds", help: "Service uptime in seconds.", kind: "gauge", value: fmt.Sprintf("%.2f", uptime)},
	}
}

// WriteTo 以 Prometheus 文本格式写出所有指标。
func (m *Metrics) WriteTo(w io.Writer, namespace, subsystem string) error {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}
	for _, s := range m.samples() {
		name := prefix + "_" + s.name
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %s\n\n", name, s.help, name, s.kind, name, s.value); err != nil {
			return err
		}
	}
	return nil
}

// Export 导出 Prometheus 格式指标。
func (m *Metrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	_ = m.WriteTo(&sb, namespace, subsystem)
	return sb.String()
}
