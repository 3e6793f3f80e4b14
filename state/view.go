// Package state provides a typed view over a pipeline's loosely-typed
// execution state.
//
// Information Hiding:
// - Every default-fallback rule for reading the caller's state mapping
//   lives here, so the stores only ever see typed structures
// - Confidence-label normalization is localized to one function
// - Sanitization limits are data, not scattered constants

package state

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/richinex/argus/internal/jsonutil"
)

// State is the opaque key/value mapping an external pipeline hands to the
// monitoring core. Unknown keys are ignored; missing keys take defaults.
type State map[string]any

// Symptoms holds categorical and boolean indicators derived from state.
type Symptoms struct {
	ActiveNode   string  `json:"active_node"`
	IsSearching  bool    `json:"is_searching"`
	HasResources bool    `json:"has_resources"`
	MessageCount int     `json:"message_count"`
	ErrorCount   int     `json:"error_count"`
	RetryCount   int     `json:"retry_count"`
	StuckCycles  int     `json:"stuck_cycles"`
	LastError    *string `json:"last_error"`
}

// Scores holds numeric performance indicators derived from state.
type Scores struct {
	Confidence   float64 `json:"confidence"`
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	LatencyMs    float64 `json:"latency_ms"`
	TokenCount   int     `json:"token_count"`
	CostUSD      float64 `json:"cost_usd"`
}

// MessageSummary is a truncated view of one conversation message.
type MessageSummary struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Context holds contextual information about the execution.
type Context struct {
	ThreadID       string           `json:"thread_id"`
	SessionID      string           `json:"session_id"`
	Query          string           `json:"query"`
	Model          string           `json:"model"`
	Temperature    float64          `json:"temperature"`
	MaxTokens      int              `json:"max_tokens"`
	SearchDomains  []string         `json:"search_domains"`
	ResourcesCount int              `json:"resources_count"`
	Messages       []MessageSummary `json:"messages"`
	Metadata       map[string]any   `json:"metadata"`
}

// Limits controls sanitization of caller-supplied mappings.
type Limits struct {
	MaxString   int // strings longer than this are replaced with a marker
	MaxList     int // lists longer than this are replaced with a marker
	MaxFallback int // cap on stringified unserializable values, 0 = no cap
}

// SnapshotLimits are the sanitization limits for snapshot raw_state.
var SnapshotLimits = Limits{MaxString: 10000, MaxList: 50}

// AuditLimits are the sanitization limits for audit entry data.
var AuditLimits = Limits{MaxString: 3000, MaxList: 20, MaxFallback: 500}

// messageContentLimit caps stored message content in Context summaries.
const messageContentLimit = 200

// View reads typed values out of a State, applying defaults for missing or
// mistyped keys. A View never fails: malformed state produces defaults.
type View struct {
	s State
}

// NewView creates a view over s. A nil state behaves like an empty one.
func NewView(s State) View {
	return View{s: s}
}

// String returns the string at key, or def when absent or not a string.
func (v View) String(key, def string) string {
	if s, ok := v.s[key].(string); ok {
		return s
	}
	return def
}

// Float returns the numeric value at key, accepting any numeric JSON
// representation, or def when absent.
func (v View) Float(key string, def float64) float64 {
	if f, ok := toFloat(v.s[key]); ok {
		return f
	}
	return def
}

// Int returns the integer value at key, or def when absent.
func (v View) Int(key string, def int) int {
	if f, ok := toFloat(v.s[key]); ok {
		return int(f)
	}
	return def
}

// Strings returns the string list at key, or nil when absent.
func (v View) Strings(key string) []string {
	switch vals := v.s[key].(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// list returns the slice at key as []any, or nil when absent.
func (v View) list(key string) []any {
	val, ok := v.s[key]
	if !ok || val == nil {
		return nil
	}
	if items, ok := val.([]any); ok {
		return items
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items
}

// mapping returns the map at key, or nil when absent.
func (v View) mapping(key string) map[string]any {
	if m, ok := v.s[key].(map[string]any); ok {
		return m
	}
	return nil
}

// Symptoms extracts categorical indicators. activeNode is supplied by the
// caller because the state mapping does not reliably carry it.
func (v View) Symptoms(activeNode string) Symptoms {
	logs := v.list("logs")

	errorCount := 0
	var lastError *string
	for _, item := range logs {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if level, _ := entry["level"].(string); level == "error" {
			errorCount++
			if msg, ok := entry["message"].(string); ok {
				m := msg
				lastError = &m
			}
		}
	}

	return Symptoms{
		ActiveNode:   activeNode,
		IsSearching:  activeNode == "search" || activeNode == "download",
		HasResources: len(v.list("resources")) > 0,
		MessageCount: len(v.list("messages")),
		ErrorCount:   errorCount,
		RetryCount:   v.Int("retry_count", 0),
		StuckCycles:  v.Int("stuck_cycles", 0),
		LastError:    lastError,
	}
}

// Scores extracts numeric performance indicators.
func (v View) Scores() Scores {
	resources := v.list("resources")
	metrics := NewView(v.mapping("metrics"))

	completeness := 0.0
	if len(resources) > 0 {
		completeness = min(float64(len(resources))/5.0, 1.0)
	}

	return Scores{
		Confidence:   NormalizeConfidence(v.s["confidence_score"]),
		Relevance:    metrics.Float("relevance", 0),
		Completeness: completeness,
		LatencyMs:    metrics.Float("latency_ms", 0),
		TokenCount:   metrics.Int("token_count", 0),
		CostUSD:      metrics.Float("cost_usd", 0),
	}
}

// Context extracts contextual information, truncating message content.
func (v View) Context() Context {
	var summaries []MessageSummary
	for _, item := range v.list("messages") {
		msg, ok := item.(map[string]any)
		if !ok {
			continue
		}
		mv := NewView(msg)
		content := mv.String("content", "")
		if content == "" {
			// Content may be structured; keep a stringified form.
			if raw, ok := msg["content"]; ok && raw != nil {
				content = jsonutil.Stringify(raw)
			}
		}
		if len(content) > messageContentLimit {
			content = content[:messageContentLimit]
		}
		summaries = append(summaries, MessageSummary{
			Role:      mv.String("role", "unknown"),
			Content:   content,
			Timestamp: mv.String("timestamp", ""),
		})
	}

	return Context{
		ThreadID:       v.String("thread_id", "unknown"),
		SessionID:      v.String("session_id", "unknown"),
		Query:          v.String("query", ""),
		Model:          v.String("model", "unknown"),
		Temperature:    v.Float("temperature", 0.7),
		MaxTokens:      v.Int("max_tokens", 4096),
		SearchDomains:  v.Strings("search_domains"),
		ResourcesCount: len(v.list("resources")),
		Messages:       summaries,
		Metadata:       v.mapping("metadata"),
	}
}

// Sanitized returns a storable copy of the state: oversized strings and
// lists are replaced with truncation markers, and values that cannot be
// serialized are stringified. Sanitized never fails.
func (v View) Sanitized(lim Limits) map[string]any {
	return Sanitize(v.s, lim)
}

// Sanitize applies lim to every value of m. See View.Sanitized.
func Sanitize(m map[string]any, lim Limits) map[string]any {
	sanitized := make(map[string]any, len(m))
	for key, value := range m {
		sanitized[key] = sanitizeValue(value, lim)
	}
	return sanitized
}

func sanitizeValue(value any, lim Limits) any {
	switch val := value.(type) {
	case string:
		if len(val) > lim.MaxString {
			return fmt.Sprintf("<truncated: %d chars>", len(val))
		}
		return val
	case []byte:
		if len(val) > lim.MaxString {
			return fmt.Sprintf("<truncated: %d chars>", len(val))
		}
		return string(val)
	}

	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Slice && rv.Len() > lim.MaxList {
		return fmt.Sprintf("<truncated: %d items>", rv.Len())
	}

	if jsonutil.Serializable(value) {
		return value
	}

	s := fmt.Sprint(value)
	if lim.MaxFallback > 0 && len(s) > lim.MaxFallback {
		s = s[:lim.MaxFallback]
	}
	return s
}

// NormalizeConfidence maps a polymorphic confidence value to a float in
// [0, 1]. Numeric values pass through; the categorical labels "high",
// "medium" and "low" map to 0.9, 0.6 and 0.3; anything else is 0.
func NormalizeConfidence(value any) float64 {
	if f, ok := toFloat(value); ok {
		return f
	}
	if s, ok := value.(string); ok {
		switch strings.ToLower(s) {
		case "high":
			return 0.9
		case "medium":
			return 0.6
		case "low":
			return 0.3
		}
	}
	return 0.0
}

// toFloat converts any numeric representation to float64.
func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
