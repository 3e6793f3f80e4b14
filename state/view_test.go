package state

import (
	"strings"
	"testing"
)

func TestSymptomsFromLogs(t *testing.T) {
	st := State{
		"logs": []any{
			map[string]any{"level": "info", "message": "starting"},
			map[string]any{"level": "error", "message": "first failure"},
			map[string]any{"level": "error", "message": "second failure"},
		},
		"retry_count":  2,
		"stuck_cycles": 1,
		"messages":     []any{map[string]any{"role": "user", "content": "hi"}},
	}

	symptoms := NewView(st).Symptoms("search")

	if symptoms.ErrorCount != 2 {
		t.Errorf("expected 2 errors, got %d", symptoms.ErrorCount)
	}
	if symptoms.LastError == nil || *symptoms.LastError != "second failure" {
		t.Errorf("expected last error 'second failure', got %v", symptoms.LastError)
	}
	if !symptoms.IsSearching {
		t.Error("expected is_searching for the search node")
	}
	if symptoms.HasResources {
		t.Error("expected no resources")
	}
	if symptoms.MessageCount != 1 {
		t.Errorf("expected 1 message, got %d", symptoms.MessageCount)
	}
	if symptoms.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", symptoms.RetryCount)
	}
}

func TestSymptomsEmptyState(t *testing.T) {
	symptoms := NewView(nil).Symptoms("chat")

	if symptoms.ActiveNode != "chat" {
		t.Errorf("expected active node 'chat', got %q", symptoms.ActiveNode)
	}
	if symptoms.IsSearching {
		t.Error("chat node should not count as searching")
	}
	if symptoms.ErrorCount != 0 || symptoms.LastError != nil {
		t.Error("empty state should carry no errors")
	}
}

func TestScoresCompleteness(t *testing.T) {
	st := State{
		"resources":        []any{"a", "b"},
		"confidence_score": "high",
		"metrics": map[string]any{
			"relevance":   0.8,
			"latency_ms":  120.5,
			"token_count": 99,
			"cost_usd":    0.002,
		},
	}

	scores := NewView(st).Scores()

	if scores.Completeness != 0.4 {
		t.Errorf("expected completeness 0.4 for 2 resources, got %v", scores.Completeness)
	}
	if scores.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9 for 'high', got %v", scores.Confidence)
	}
	if scores.Relevance != 0.8 {
		t.Errorf("expected relevance 0.8, got %v", scores.Relevance)
	}
	if scores.TokenCount != 99 {
		t.Errorf("expected token count 99, got %d", scores.TokenCount)
	}
}

func TestScoresCompletenessCapped(t *testing.T) {
	st := State{"resources": []any{"a", "b", "c", "d", "e", "f", "g"}}
	scores := NewView(st).Scores()
	if scores.Completeness != 1.0 {
		t.Errorf("expected completeness capped at 1.0, got %v", scores.Completeness)
	}
}

func TestContextDefaults(t *testing.T) {
	ctx := NewView(nil).Context()

	if ctx.ThreadID != "unknown" || ctx.SessionID != "unknown" {
		t.Errorf("expected unknown ids, got %q / %q", ctx.ThreadID, ctx.SessionID)
	}
	if ctx.Temperature != 0.7 {
		t.Errorf("expected default temperature 0.7, got %v", ctx.Temperature)
	}
	if ctx.MaxTokens != 4096 {
		t.Errorf("expected default max_tokens 4096, got %d", ctx.MaxTokens)
	}
}

func TestContextTruncatesMessageContent(t *testing.T) {
	long := strings.Repeat("x", 500)
	st := State{
		"messages": []any{
			map[string]any{"role": "user", "content": long},
		},
	}

	ctx := NewView(st).Context()

	if len(ctx.Messages) != 1 {
		t.Fatalf("expected 1 message summary, got %d", len(ctx.Messages))
	}
	if len(ctx.Messages[0].Content) != 200 {
		t.Errorf("expected content capped at 200 chars, got %d", len(ctx.Messages[0].Content))
	}
}

func TestContextStructuredContent(t *testing.T) {
	st := State{
		"messages": []any{
			map[string]any{"role": "assistant", "content": map[string]any{"parts": []any{"a"}}},
		},
	}

	ctx := NewView(st).Context()

	if len(ctx.Messages) != 1 {
		t.Fatalf("expected 1 message summary, got %d", len(ctx.Messages))
	}
	if !strings.Contains(ctx.Messages[0].Content, "parts") {
		t.Errorf("expected stringified structured content, got %q", ctx.Messages[0].Content)
	}
}

func TestSanitizeOversizedString(t *testing.T) {
	st := State{"blob": strings.Repeat("a", 10001)}
	out := NewView(st).Sanitized(SnapshotLimits)

	if out["blob"] != "<truncated: 10001 chars>" {
		t.Errorf("expected truncation marker, got %v", out["blob"])
	}
}

func TestSanitizeOversizedList(t *testing.T) {
	items := make([]any, 51)
	for i := range items {
		items[i] = i
	}
	out := Sanitize(map[string]any{"items": items}, SnapshotLimits)

	if out["items"] != "<truncated: 51 items>" {
		t.Errorf("expected truncation marker, got %v", out["items"])
	}
}

func TestSanitizeUnserializableValue(t *testing.T) {
	out := Sanitize(map[string]any{"fn": func() {}}, AuditLimits)

	s, ok := out["fn"].(string)
	if !ok {
		t.Fatalf("expected stringified fallback, got %T", out["fn"])
	}
	if len(s) > AuditLimits.MaxFallback {
		t.Errorf("fallback string exceeds cap: %d chars", len(s))
	}
}

func TestSanitizeKeepsSmallValues(t *testing.T) {
	st := map[string]any{"query": "hello", "count": 3, "flags": []any{"a", "b"}}
	out := Sanitize(st, AuditLimits)

	if out["query"] != "hello" {
		t.Errorf("small string should pass through, got %v", out["query"])
	}
	if out["count"] != 3 {
		t.Errorf("number should pass through, got %v", out["count"])
	}
}

func TestNormalizeConfidence(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  float64
	}{
		{"numeric passthrough", 0.75, 0.75},
		{"int passthrough", 1, 1.0},
		{"high label", "high", 0.9},
		{"medium label", "Medium", 0.6},
		{"low label", "LOW", 0.3},
		{"unknown label", "excellent", 0.0},
		{"nil", nil, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeConfidence(tc.value)
			if got != tc.want {
				t.Errorf("NormalizeConfidence(%v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}
