package violation

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/model"
)

// Engine scans a subject's financial profile for deterministic rule
// violations. Rule evaluation never raises errors for malformed input; bad
// data surfaces as low confidence instead.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineAt returns an engine with an injected clock, for tests and
// simulation.
func NewEngineAt(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// ScanProfile evaluates every rule against the profile's tradelines. When
// targetEntityIDs is non-empty only those tradelines are re-evaluated (their
// violation lists replaced); all others keep their previously attached
// violations unchanged. profile.ActiveViolations is fully replaced either way.
func (e *Engine) ScanProfile(profile *model.UserCreditProfile, targetEntityIDs []string) []model.Violation {
	now := e.now()

	targeted := len(targetEntityIDs) > 0
	targets := make(map[string]bool, len(targetEntityIDs))
	for _, id := range targetEntityIDs {
		targets[id] = true
	}

	var active []model.Violation
	scanned := 0
	for i := range profile.Tradelines {
		tl := &profile.Tradelines[i]
		if targeted && !targets[tl.ID] {
			active = append(active, tl.Violations...)
			continue
		}
		tl.Violations = e.scanTradeline(tl, now)
		active = append(active, tl.Violations...)
		scanned++
	}

	profile.ActiveViolations = active

	zap.L().Info("violation: scan complete",
		zap.String("subject", profile.SubjectID),
		zap.Int("tradelines_scanned", scanned),
		zap.Int("violations", len(active)),
		zap.Bool("targeted", targeted),
	)

	return active
}

// scanTradeline evaluates the full rule table against one tradeline and
// returns fresh Violation instances.
func (e *Engine) scanTradeline(tl *model.Tradeline, now time.Time) []model.Violation {
	var out []model.Violation
	penalty := stalenessPenalty(tl, now)

	for _, r := range ruleTable {
		f := r.evaluate(tl)
		if f == nil {
			continue
		}
		conf := model.ClampConfidence((f.confA+f.confB)/2 - penalty)
		out = append(out, model.Violation{
			ID:              uuid.New().String(),
			RuleID:          r.id,
			Severity:        r.severity,
			Description:     f.description,
			Statute:         r.statute,
			Remedy:          r.remedy,
			Confidence:      conf,
			RelatedEntityID: tl.ID,
		})
	}
	return out
}
