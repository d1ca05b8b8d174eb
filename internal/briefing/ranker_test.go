package briefing

import (
	"context"
	"path/filepath"
	"testing"

	"cassmem/internal/config"
	"cassmem/internal/history"
	"cassmem/internal/playbook"
)

type fakeSearcher struct {
	snippets  []history.Snippet
	available bool
}

func (f *fakeSearcher) Available() bool { return f.available }

func (f *fakeSearcher) Search(ctx context.Context, query string, opts history.SearchOptions) []history.Snippet {
	return f.snippets
}

func seedPlaybook(t *testing.T) playbook.Sources {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "playbook.yaml")

	pb := playbook.New("global")
	rel := playbook.AddBullet(pb, playbook.NewBulletInput{
		Content: "run database migrations inside a transaction", Category: "database", Tags: []string{"migrations"},
	}, "", 90)
	rel.State = playbook.StateActive
	playbook.RecordFeedbackEvent(pb, rel.ID, playbook.FeedbackHelpful, playbook.FeedbackOptions{})

	anti := playbook.AddBullet(pb, playbook.NewBulletInput{
		Content: "AVOID: running migrations by hand in production", Category: "database", Kind: playbook.KindAntiPattern,
	}, "", 90)
	anti.State = playbook.StateActive

	playbook.AddBullet(pb, playbook.NewBulletInput{
		Content: "use lipgloss styles for terminal output", Category: "tui",
	}, "", 90)

	wsOnly := playbook.AddBullet(pb, playbook.NewBulletInput{
		Content: "this repo's migrations live in db/migrate", Category: "database",
		Scope: playbook.ScopeWorkspace, Workspace: "other-repo",
	}, "", 90)
	wsOnly.State = playbook.StateActive

	dead := playbook.AddBullet(pb, playbook.NewBulletInput{
		Content: "deprecated migration advice", Category: "database",
	}, "", 90)
	playbook.DeprecateBullet(pb, dead.ID, "old", "")

	pb.DeprecatedPatterns = []playbook.DeprecatedPattern{
		{Pattern: "rake db:migrate", Reason: "moved to golang-migrate", Replacement: "migrate CLI"},
	}

	if err := playbook.Save(path, pb); err != nil {
		t.Fatal(err)
	}
	return playbook.Sources{GlobalPath: path}
}

func testRanker(t *testing.T, search Searcher) *Ranker {
	return New(seedPlaybook(t), search, nil, config.DefaultConfig())
}

func TestBuildRanksRelevantBullets(t *testing.T) {
	r := testRanker(t, &fakeSearcher{available: true})
	res, err := r.Build(context.Background(), "write database migrations for the orders table", Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(res.RelevantBullets) == 0 {
		t.Fatal("no relevant bullets")
	}
	top := res.RelevantBullets[0].Bullet
	if top.Category != "database" {
		t.Errorf("top bullet %q, want the migration rule", top.Content)
	}
	for _, rb := range res.RelevantBullets {
		if rb.Bullet.Content == "use lipgloss styles for terminal output" {
			t.Error("irrelevant bullet ranked into briefing")
		}
		if rb.Bullet.IsNegative {
			t.Error("anti-pattern listed under rules")
		}
	}
}

func TestBuildSplitsAntiPatterns(t *testing.T) {
	r := testRanker(t, &fakeSearcher{available: true})
	res, err := r.Build(context.Background(), "running migrations in production", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.AntiPatterns) == 0 {
		t.Fatal("anti-pattern missing from briefing")
	}
	for _, rb := range res.AntiPatterns {
		if !rb.Bullet.IsNegative && rb.Bullet.Kind != playbook.KindAntiPattern {
			t.Errorf("non-negative bullet in antiPatterns: %q", rb.Bullet.Content)
		}
	}
}

func TestBuildExcludesInactiveAndForeignWorkspace(t *testing.T) {
	r := testRanker(t, &fakeSearcher{available: true})
	res, err := r.Build(context.Background(), "database migrations advice for this repo", Options{Workspace: "my-repo"})
	if err != nil {
		t.Fatal(err)
	}
	all := append(append([]RankedBullet(nil), res.RelevantBullets...), res.AntiPatterns...)
	for _, rb := range all {
		if rb.Bullet.Content == "deprecated migration advice" {
			t.Error("inactive bullet in briefing")
		}
		if rb.Bullet.Workspace == "other-repo" {
			t.Error("foreign workspace bullet in briefing")
		}
	}
}

func TestBuildDeprecatedWarnings(t *testing.T) {
	search := &fakeSearcher{
		available: true,
		snippets: []history.Snippet{
			{SourcePath: "/s/old.jsonl", Snippet: "we used to run rake db:migrate on deploy"},
		},
	}
	r := testRanker(t, search)

	// Pattern in the task text.
	res, err := r.Build(context.Background(), "set up rake db:migrate for deploys", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.DeprecatedWarnings) != 1 || res.DeprecatedWarnings[0].FoundIn != "task" {
		t.Errorf("warnings = %+v, want one task-sourced warning", res.DeprecatedWarnings)
	}

	// Pattern only in history snippets.
	res, err = r.Build(context.Background(), "how do deploys run migrations here", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.DeprecatedWarnings) != 1 || res.DeprecatedWarnings[0].FoundIn != "history" {
		t.Errorf("warnings = %+v, want one history-sourced warning", res.DeprecatedWarnings)
	}
}

func TestBuildDegradesWithoutHistory(t *testing.T) {
	r := testRanker(t, &fakeSearcher{available: false})
	res, err := r.Build(context.Background(), "database migrations", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.HistoryUnavailable {
		t.Error("degraded briefing not annotated")
	}
	if len(res.HistorySnippets) != 0 {
		t.Error("snippets present despite unavailable history")
	}
}

func TestBuildCapsBulletCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playbook.yaml")
	pb := playbook.New("global")
	for i := 0; i < 30; i++ {
		b := playbook.AddBullet(pb, playbook.NewBulletInput{
			Content: "database migration rule variant", Category: "database",
		}, "", 90)
		b.State = playbook.StateActive
		b.Content = b.Content + " " + b.ID // keep hashes distinct
	}
	if err := playbook.Save(path, pb); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Context.MaxBulletsInContext = 7
	r := New(playbook.Sources{GlobalPath: path}, &fakeSearcher{available: true}, nil, cfg)

	res, err := r.Build(context.Background(), "database migration", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(res.RelevantBullets) + len(res.AntiPatterns); got > 7 {
		t.Errorf("briefing bullets = %d, want <= 7", got)
	}
}
