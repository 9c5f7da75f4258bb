package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Severity grades a usage level against the user's color thresholds.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarn
	SeverityCrit
)

// Thresholds are expressed as "used" percentages, regardless of the
// provider's payment semantics.
type Thresholds struct {
	Yellow float64
	Red    float64
}

func ClampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// UsedPercent normalizes a snapshot's percentage to consumption (0-100).
// Quota providers report remaining allowance, so the value inverts.
func UsedPercent(s UsageSnapshot) float64 {
	p := ClampPercent(s.UsagePercentage)
	if s.QuotaSemantics() {
		return 100 - p
	}
	return p
}

// RemainingPercent is the complement of UsedPercent; the two always sum to 100.
func RemainingPercent(s UsageSnapshot) float64 {
	return 100 - UsedPercent(s)
}

// SeverityFor grades a used percentage. Crit wins over warn when the
// thresholds overlap.
func SeverityFor(usedPercent float64, t Thresholds) Severity {
	switch {
	case usedPercent > t.Red:
		return SeverityCrit
	case usedPercent > t.Yellow:
		return SeverityWarn
	default:
		return SeverityOK
	}
}

// FillPercent returns the filled portion of a usage indicator. The invert
// preference flips fill direction only; severity coloring always tracks
// consumption.
func FillPercent(s UsageSnapshot, invert bool) float64 {
	if invert {
		return RemainingPercent(s)
	}
	return UsedPercent(s)
}

// StatusText formats the right-hand status label for a snapshot.
func StatusText(s UsageSnapshot, invert bool) string {
	if !s.IsAvailable {
		return "N/A"
	}
	switch {
	case s.PaymentType == PaymentCredits && s.CostLimit > 0:
		return fmt.Sprintf("%.2f credits remaining", s.CostLimit-s.CostUsed)
	case s.PaymentType == PaymentUsageBased && s.CostLimit > 0:
		return fmt.Sprintf("$%.2f / $%.2f", s.CostUsed, s.CostLimit)
	}
	return PercentText(s, invert)
}

// PercentText renders the percentage per the invert preference.
func PercentText(s UsageSnapshot, invert bool) string {
	if invert {
		return fmt.Sprintf("%.0f%% left", RemainingPercent(s))
	}
	return fmt.Sprintf("%.0f%% used", UsedPercent(s))
}

// DisplayName renders "Provider [account]", masking the account in privacy mode.
func DisplayName(s UsageSnapshot, privacy bool) string {
	if s.AccountName == "" {
		return s.ProviderName
	}
	if privacy {
		return s.ProviderName + " [***]"
	}
	return fmt.Sprintf("%s [%s]", s.ProviderName, s.AccountName)
}

// ParseDetailPercent extracts a percentage from a detail's free-form Used
// field ("45%", " 45.5% ", "62"). Unparsable values normalize to 0.
func ParseDetailPercent(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "%"))
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return ClampPercent(v)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	return ClampPercent(v)
}

// SortedDetails returns a copy ordered by (GroupName, Name). Source ordering
// is never trusted for grouped children.
func SortedDetails(details []UsageDetail) []UsageDetail {
	out := make([]UsageDetail, len(details))
	copy(out, details)
	sort.SliceStable(out, func(i, j int) bool { return detailLess(out[i], out[j]) })
	return out
}

func detailLess(a, b UsageDetail) bool {
	ag, bg := strings.ToLower(a.GroupName), strings.ToLower(b.GroupName)
	if ag != bg {
		return ag < bg
	}
	return strings.ToLower(a.Name) < strings.ToLower(b.Name)
}

// DetailLabel prefers the model display override over the raw detail name.
func DetailLabel(d UsageDetail) string {
	if d.ModelName != "" {
		return d.ModelName
	}
	return d.Name
}
