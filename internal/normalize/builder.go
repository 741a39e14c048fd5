package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/model"
)

// ParseAmount converts a raw currency string to dollars. Handles $ signs,
// thousands separators, and accounting-style parentheses for negatives.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// BuildTradeline converts one untrusted extraction into a typed,
// confidence-scored tradeline. Malformed values never raise errors — they
// degrade to lower-confidence or absent fields.
func BuildTradeline(subjectID string, raw model.RawTradeline, now time.Time) model.Tradeline {
	var reportedAt time.Time
	if t := ParseDate(raw.ReportedAt); t != nil {
		reportedAt = *t
	}

	base := DecayConfidence(raw.Confidence, reportedAt, now)

	t := model.Tradeline{
		ID:         uuid.New().String(),
		SubjectID:  subjectID,
		ReportedAt: reportedAt,
		Metro2:     MapStatus(raw.Status),
	}

	t.Creditor = stringField(raw.Creditor, base, raw.Source)
	t.AccountNumber = stringField(raw.AccountNumber, base, raw.Source)
	t.AccountType = stringField(raw.AccountType, base, raw.Source)
	t.StatusText = stringField(raw.Status, base, raw.Source)

	t.Balance = amountField(raw.Balance, base, raw.Source)
	t.CreditLimit = amountField(raw.CreditLimit, base, raw.Source)
	t.PastDue = amountField(raw.PastDue, base, raw.Source)

	t.DateOpened = dateField(raw.DateOpened, base, raw.Source)
	t.DateClosed = dateField(raw.DateClosed, base, raw.Source)
	t.LastActivity = dateField(raw.LastActivity, base, raw.Source)

	return t
}

// BuildProfile assembles a full profile from one extracted report. The
// subject's identity and scores carry the extractor's confidence unchanged;
// tradelines go through the usual per-field normalization.
func BuildProfile(subjectID string, raw model.RawReport, now time.Time) *model.UserCreditProfile {
	p := &model.UserCreditProfile{
		SubjectID:  subjectID,
		Scores:     raw.Scores,
		Tradelines: BuildTradelines(subjectID, raw.Tradelines, now),
		UpdatedAt:  now,
	}

	id := raw.Identity
	p.Identity.Name = stringField(id.Name, id.Confidence, id.Source)
	p.Identity.Address = stringField(id.Address, id.Confidence, id.Source)
	p.Identity.SSNLast4 = stringField(id.SSNLast4, id.Confidence, id.Source)
	if year, err := strconv.Atoi(strings.TrimSpace(id.BirthYear)); err == nil && year > 1900 {
		p.Identity.BirthYear = model.NewField(year, id.BirthYear, id.Confidence, id.Source)
	}
	return p
}

// BuildTradelines normalizes a batch of raw extractions.
func BuildTradelines(subjectID string, raws []model.RawTradeline, now time.Time) []model.Tradeline {
	out := make([]model.Tradeline, 0, len(raws))
	for _, r := range raws {
		if strings.TrimSpace(r.Creditor) == "" && strings.TrimSpace(r.AccountNumber) == "" {
			zap.L().Debug("normalize: dropping anonymous extraction", zap.String("source", r.Source))
			continue
		}
		out = append(out, BuildTradeline(subjectID, r, now))
	}
	return out
}

func stringField(raw string, confidence int, source string) model.Field[string] {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.Field[string]{}
	}
	return model.NewField(s, raw, confidence, source)
}

func amountField(raw string, confidence int, source string) model.Field[float64] {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.Field[float64]{}
	}
	v, ok := ParseAmount(s)
	if !ok {
		// Unparseable amount: keep the raw reading at half trust so the
		// record stays visible without driving rule decisions on its own.
		return model.NewField(0.0, raw, confidence/2, source)
	}
	return model.NewField(v, raw, confidence, source)
}

func dateField(raw string, confidence int, source string) model.Field[time.Time] {
	t := ParseDate(raw)
	if t == nil {
		return model.Field[time.Time]{}
	}
	return model.NewField(*t, raw, confidence, source)
}
