package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cassmem/internal/config"
)

func testClient(run func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error)) *Client {
	c := NewClient(config.DefaultConfig())
	c.binary = "sh" // something on PATH so Available() is true
	c.run = run
	return c
}

func TestSearchParsesSnippets(t *testing.T) {
	c := testClient(func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
		return []byte(`[{"source_path":"/s/a.jsonl","line_number":12,"agent":"claude-code","snippet":"fixed the bug","score":0.9}]`), nil
	})

	got := c.Search(context.Background(), "bug", SearchOptions{Limit: 5})
	if len(got) != 1 {
		t.Fatalf("snippets = %d, want 1", len(got))
	}
	s := got[0]
	if s.SourcePath != "/s/a.jsonl" || s.LineNumber != 12 || s.Score != 0.9 {
		t.Errorf("snippet = %+v", s)
	}
}

func TestSearchFailsSoft(t *testing.T) {
	c := testClient(func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
		return nil, errors.New("boom")
	})
	if got := c.Search(context.Background(), "q", SearchOptions{}); got != nil {
		t.Errorf("failed search = %v, want nil", got)
	}

	bad := testClient(func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
		return []byte("not json"), nil
	})
	if got := bad.Search(context.Background(), "q", SearchOptions{}); got != nil {
		t.Errorf("unparseable search = %v, want nil", got)
	}
}

func TestSearchUnavailableBinary(t *testing.T) {
	c := NewClient(config.DefaultConfig())
	c.binary = "definitely-not-a-real-binary-name"
	if got := c.Search(context.Background(), "q", SearchOptions{}); got != nil {
		t.Errorf("unavailable binary search = %v, want nil", got)
	}
	if c.Available() {
		t.Error("Available() = true for missing binary")
	}
}

func TestExportFailsSoftToEmpty(t *testing.T) {
	c := testClient(func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
		return nil, errors.New("no such session")
	})
	if got := c.Export(context.Background(), "/s/a.jsonl"); got != "" {
		t.Errorf("Export = %q, want empty", got)
	}
}

func TestRecentTimelineParses(t *testing.T) {
	c := testClient(func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
		return []byte(`{"groups":[{"date":"2026-07-01","sessions":[{"path":"/s/a.jsonl","agent":"cursor"}]}]}`), nil
	})
	tl := c.RecentTimeline(context.Background(), 7)
	if len(tl.Groups) != 1 || len(tl.Groups[0].Sessions) != 1 {
		t.Fatalf("timeline = %+v", tl)
	}
	if tl.Groups[0].Sessions[0].Agent != "cursor" {
		t.Errorf("agent = %q", tl.Groups[0].Sessions[0].Agent)
	}
}

func TestSearchPassesOptionFlags(t *testing.T) {
	var gotArgs []string
	c := testClient(func(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("[]"), nil
	})
	c.Search(context.Background(), "query text", SearchOptions{Limit: 20, Days: 30, Agent: "cursor", Workspace: "/repo"})

	want := []string{"search", "query text", "--format", "json", "--limit", "20", "--days", "30", "--agent", "cursor", "--workspace", "/repo"}
	if fmt.Sprint(gotArgs) != fmt.Sprint(want) {
		t.Errorf("args = %v, want %v", gotArgs, want)
	}
}
