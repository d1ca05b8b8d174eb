package reflection

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"cassmem/internal/config"
	"cassmem/internal/curator"
	"cassmem/internal/fsutil"
	"cassmem/internal/gate"
	"cassmem/internal/history"
	"cassmem/internal/llm"
	"cassmem/internal/logging"
	"cassmem/internal/playbook"
	"cassmem/internal/sanitize"
)

// extractConcurrency bounds parallel export+extract work. Each session's
// deltas still apply under their own lock acquisition, so cancellation
// mid-batch leaves a consistent, partially-updated playbook.
const extractConcurrency = 4

// HistoryClient is the slice of the cass client the orchestrator needs.
type HistoryClient interface {
	Available() bool
	Search(ctx context.Context, query string, opts history.SearchOptions) []history.Snippet
	Export(ctx context.Context, sessionPath string) string
	RecentTimeline(ctx context.Context, days int) history.Timeline
}

// Orchestrator runs reflection cycles.
type Orchestrator struct {
	cfg       *config.Config
	src       playbook.Sources
	historyC  HistoryClient
	extractor llm.DiaryExtractor
	validator llm.Validator
	sanitizer *sanitize.Sanitizer
	gate      *gate.Gate

	diaryDir      string
	processedPath string
}

// NewOrchestrator wires a reflection cycle. validator may be nil (ambiguous
// candidates are then skipped), extractor must not be.
func NewOrchestrator(cfg *config.Config, src playbook.Sources, hc HistoryClient,
	extractor llm.DiaryExtractor, validator llm.Validator,
	diaryDir, processedPath string) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		src:           src,
		historyC:      hc,
		extractor:     extractor,
		validator:     validator,
		sanitizer:     sanitize.New(cfg.Sanitization),
		gate:          gate.New(hc, cfg.Validation),
		diaryDir:      diaryDir,
		processedPath: processedPath,
	}
}

// Options narrow a reflection run.
type Options struct {
	Days        int
	Workspace   string
	MaxSessions int
}

// Result summarizes one reflection cycle.
type Result struct {
	SessionsDiscovered int      `json:"sessionsDiscovered"`
	SessionsProcessed  int      `json:"sessionsProcessed"`
	DeltasProposed     int      `json:"deltasProposed"`
	DeltasApplied      int      `json:"deltasApplied"`
	Skipped            []string `json:"skipped,omitempty"`
}

type sessionWork struct {
	path   string
	agent  string
	deltas []DiaryDelta
}

// Run executes one reflection cycle: discover recent sessions, extract
// diaries from the unprocessed ones, gate the proposed additions, curate the
// playbook, and record the sessions as processed.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryReflection, "Run")
	defer timer.Stop()

	days := opts.Days
	if days <= 0 {
		days = o.cfg.Context.SessionLookbackDays
	}

	res := &Result{}

	timeline := o.historyC.RecentTimeline(ctx, days)
	processed := LoadProcessedLog(o.processedPath)

	var pending []history.TimelineSession
	for _, group := range timeline.Groups {
		for _, s := range group.Sessions {
			res.SessionsDiscovered++
			if processed.Contains(s.Path) {
				continue
			}
			pending = append(pending, s)
		}
	}
	if opts.MaxSessions > 0 && len(pending) > opts.MaxSessions {
		pending = pending[:opts.MaxSessions]
	}
	logging.Reflection("Reflection: %d discovered, %d pending", res.SessionsDiscovered, len(pending))

	// Phase 1: export + sanitize + extract, bounded fan-out. Pure reads plus
	// diary writes; no playbook mutation yet.
	var mu sync.Mutex
	var work []sessionWork
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for _, s := range pending {
		g.Go(func() error {
			w, err := o.extractOne(gctx, s)
			if err != nil {
				mu.Lock()
				res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %v", s.Path, err))
				mu.Unlock()
				logging.Get(logging.CategoryReflection).Warn("Skipping session %s: %v", s.Path, err)
				return nil
			}
			mu.Lock()
			work = append(work, w)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	// Phase 2: gate + curate, one session at a time, each under its own lock
	// acquisition.
	for _, w := range work {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		proposed, applied, err := o.curateOne(ctx, w, processed)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %v", w.path, err))
			continue
		}
		res.SessionsProcessed++
		res.DeltasProposed += proposed
		res.DeltasApplied += applied
	}

	logging.Reflection("Reflection done: %d sessions, %d/%d deltas applied",
		res.SessionsProcessed, res.DeltasApplied, res.DeltasProposed)
	return res, nil
}

func (o *Orchestrator) extractOne(ctx context.Context, s history.TimelineSession) (sessionWork, error) {
	transcript := o.historyC.Export(ctx, s.Path)
	if transcript == "" {
		return sessionWork{}, fmt.Errorf("empty or unavailable export")
	}

	sanitized := o.sanitizer.Sanitize(transcript)
	agent := s.Agent
	if agent == "" {
		agent = playbook.DeriveSourceAgent(s.Path)
	}

	diary, err := o.extractor.ExtractDiary(ctx, sanitized, llm.DiaryMetadata{SessionPath: s.Path, Agent: agent})
	if err != nil {
		return sessionWork{}, fmt.Errorf("diary extraction: %w", err)
	}
	if err := SaveDiary(o.diaryDir, s.Path, agent, diary); err != nil {
		logging.Get(logging.CategoryReflection).Warn("Could not persist diary for %s: %v", s.Path, err)
	}

	return sessionWork{path: s.Path, agent: agent, deltas: DeltasFromDiary(diary, s.Path)}, nil
}

func (o *Orchestrator) curateOne(ctx context.Context, w sessionWork, processed *ProcessedLog) (proposed, applied int, err error) {
	var deltas []curator.Delta
	for _, d := range w.deltas {
		proposed++
		cd, ok := o.gateOne(ctx, d)
		if !ok {
			continue
		}
		deltas = append(deltas, cd)
	}

	var result curator.Result
	err = fsutil.WithLock(o.src.GlobalPath, fsutil.LockOptions{}, func() error {
		pb, loadErr := playbook.Load(o.src.GlobalPath)
		if loadErr != nil {
			return loadErr
		}
		result = curator.Apply(pb, deltas, o.cfg)
		pb.Metadata.TotalReflections++
		pb.Metadata.TotalSessionsProcessed++
		return playbook.Save(o.src.GlobalPath, pb)
	})
	if err != nil {
		return proposed, 0, err
	}

	entry := ProcessedEntry{SessionPath: w.path, DeltasProposed: proposed, DeltasApplied: result.Applied}
	if lockErr := fsutil.WithLock(o.processedPath, fsutil.LockOptions{}, func() error {
		// Reload under the lock so concurrent reflectors don't clobber each
		// other's entries.
		fresh := LoadProcessedLog(o.processedPath)
		fresh.Add(entry)
		return fresh.Save()
	}); lockErr != nil {
		return proposed, result.Applied, lockErr
	}
	processed.Add(entry)

	return proposed, result.Applied, nil
}

// gateOne runs a diary add through the evidence gate and, when ambiguous,
// the external validator. Returns false when the proposal is dropped.
func (o *Orchestrator) gateOne(ctx context.Context, d DiaryDelta) (curator.Delta, bool) {
	cd := curator.Delta{
		Kind:          curator.DeltaAdd,
		Bullet:        &d.Input,
		SourceSession: d.SourceSession,
	}

	verdict := o.gate.Evaluate(ctx, d.Input.Content)
	if !verdict.Passed {
		logging.GateDebug("Dropped %q: %s", d.Input.Content, verdict.Reason)
		return cd, false
	}
	cd.SuggestedState = verdict.SuggestedState

	if !verdict.Ambiguous || !o.cfg.Validation.Enabled {
		return cd, true
	}

	if o.validator == nil {
		logging.GateLog("Validator unavailable for ambiguous candidate, skipping: %q", d.Input.Content)
		return cd, false
	}

	evidence := o.collectEvidence(ctx, d.Input.Content)
	vres, err := o.validator.Validate(ctx, d.Input.Content, evidence)
	if err != nil {
		logging.Get(logging.CategoryGate).Warn("Validator unreachable, skipping candidate: %v", err)
		return cd, false
	}
	vres = llm.Normalize(vres)
	if !vres.Valid || vres.Verdict == llm.VerdictReject {
		logging.GateDebug("Validator rejected %q (%s)", d.Input.Content, vres.Verdict)
		return cd, false
	}
	return cd, true
}

func (o *Orchestrator) collectEvidence(ctx context.Context, content string) string {
	snippets := o.historyC.Search(ctx, content, history.SearchOptions{
		Limit: 10,
		Days:  o.cfg.Validation.LookbackDays,
	})
	var evidence string
	for _, s := range snippets {
		evidence += fmt.Sprintf("[%s] %s\n", s.SourcePath, s.Snippet)
	}
	return evidence
}
