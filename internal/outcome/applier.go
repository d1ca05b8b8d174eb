package outcome

import (
	"fmt"
	"sort"

	"cassmem/internal/fsutil"
	"cassmem/internal/logging"
	"cassmem/internal/playbook"
)

// Signal weights. The aggregated helpful and harmful scores compete; the
// larger one decides the event type, ties break to helpful.
const (
	fastThresholdSeconds = 600
	slowThresholdSeconds = 3600

	weightBase           = 1.0
	weightMixed          = 0.1
	weightFastBonus      = 0.5
	weightSlowPenalty    = 0.3
	weightManyErrors     = 0.7
	weightOneError       = 0.3
	weightRetries        = 0.5
	weightPositiveMood   = 0.3
	weightNegativeMood   = 0.5

	minEventValue = 0.1
	maxEventValue = 2.0
)

// Derived is the feedback translation of one outcome record.
type Derived struct {
	Type  playbook.FeedbackType
	Value float64
	Why   string
}

// Derive translates an outcome record's signals into one feedback event.
func Derive(rec Record) Derived {
	var helpful, harmful float64

	switch rec.Outcome {
	case StatusSuccess:
		helpful += weightBase
	case StatusFailure:
		harmful += weightBase
	case StatusMixed:
		helpful += weightMixed
		harmful += weightMixed
	}

	if rec.DurationSeconds > 0 {
		if rec.DurationSeconds < fastThresholdSeconds && rec.Outcome != StatusFailure {
			helpful += weightFastBonus
		} else if rec.DurationSeconds > slowThresholdSeconds {
			harmful += weightSlowPenalty
		}
	}

	switch {
	case rec.ErrorCount >= 2:
		harmful += weightManyErrors
	case rec.ErrorCount == 1:
		harmful += weightOneError
	}

	if rec.HadRetries {
		harmful += weightRetries
	}

	switch rec.Sentiment {
	case "positive":
		helpful += weightPositiveMood
	case "negative":
		harmful += weightNegativeMood
	}

	d := Derived{}
	if harmful > helpful {
		d.Type = playbook.FeedbackHarmful
		d.Value = harmful
		d.Why = fmt.Sprintf("outcome %s (harmful=%.1f > helpful=%.1f)", rec.Outcome, harmful, helpful)
	} else {
		d.Type = playbook.FeedbackHelpful
		d.Value = helpful
		d.Why = fmt.Sprintf("outcome %s (helpful=%.1f >= harmful=%.1f)", rec.Outcome, helpful, harmful)
	}

	if d.Value < minEventValue {
		d.Value = minEventValue
	}
	if d.Value > maxEventValue {
		d.Value = maxEventValue
	}
	return d
}

// Applier routes derived feedback onto the playbook files owning the cited
// rules.
type Applier struct {
	src playbook.Sources
}

// NewApplier builds an applier over the cascade.
func NewApplier(src playbook.Sources) *Applier {
	return &Applier{src: src}
}

// Apply derives feedback from the record and applies one event per cited
// rule. Rules are resolved to their owning file (repo preferred over global),
// grouped by file, and each file is mutated under one lock, files in
// ascending path order.
func (a *Applier) Apply(rec Record) (applied int, err error) {
	timer := logging.StartTimer(logging.CategoryOutcome, "Applier.Apply")
	defer timer.Stop()

	if len(rec.RulesUsed) == 0 {
		return 0, nil
	}
	d := Derive(rec)

	byFile := make(map[string][]string)
	for _, id := range rec.RulesUsed {
		path, resolveErr := playbook.OwnerPath(a.src, id)
		if resolveErr != nil {
			return applied, resolveErr
		}
		byFile[path] = append(byFile[path], id)
	}

	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		ids := byFile[path]
		lockErr := fsutil.WithLock(path, fsutil.LockOptions{}, func() error {
			pb, loadErr := playbook.Load(path)
			if loadErr != nil {
				return loadErr
			}
			touched := false
			for _, id := range ids {
				ok := playbook.RecordFeedbackEvent(pb, id, d.Type, playbook.FeedbackOptions{
					SessionPath: rec.Path,
					Reason:      d.Why,
					Context:     fmt.Sprintf("outcome %s, value %.2f", rec.SessionID, d.Value),
				})
				if ok {
					applied++
					touched = true
				} else {
					logging.Get(logging.CategoryOutcome).Warn("Outcome cites unknown rule %s", id)
				}
			}
			if !touched {
				return nil
			}
			return playbook.Save(path, pb)
		})
		if lockErr != nil {
			return applied, lockErr
		}
	}

	logging.Outcome("Applied %s feedback (value %.2f) to %d rule(s)", d.Type, d.Value, applied)
	return applied, nil
}
