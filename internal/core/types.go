package core

import "time"

type PaymentType string

const (
	PaymentUsageBased PaymentType = "usage_based"
	PaymentCredits    PaymentType = "credits"
	PaymentQuota      PaymentType = "quota"
)

// UsageSnapshot is one provider's state as reported by the usage backend.
// A fresh list of snapshots fully replaces the previous one on every poll;
// there is no field-level merge.
type UsageSnapshot struct {
	ProviderID      string        `json:"provider_id"`
	ProviderName    string        `json:"provider_name"`
	PaymentType     PaymentType   `json:"payment_type"`
	UsagePercentage float64       `json:"usage_percentage"`
	CostUsed        float64       `json:"cost_used"`
	CostLimit       float64       `json:"cost_limit"`
	IsQuotaBased    bool          `json:"is_quota_based"` // legacy alias for PaymentQuota
	IsAvailable     bool          `json:"is_available"`
	Description     string        `json:"description"`
	AccountName     string        `json:"account_name"`
	AuthSource      string        `json:"auth_source"`
	NextResetTime   *time.Time    `json:"next_reset_time,omitempty"`
	Details         []UsageDetail `json:"details,omitempty"`
}

// UsageDetail is a named sub-metric of a provider, e.g. one rate-limited model.
type UsageDetail struct {
	Name          string     `json:"name"`
	ModelName     string     `json:"model_name,omitempty"`
	Used          string     `json:"used"` // free text, often "NN%"
	GroupName     string     `json:"group_name,omitempty"`
	NextResetTime *time.Time `json:"next_reset_time,omitempty"`
}

// QuotaSemantics reports whether UsagePercentage denotes remaining allowance
// rather than consumption.
func (s UsageSnapshot) QuotaSemantics() bool {
	return s.PaymentType == PaymentQuota || s.IsQuotaBased
}

// CostBearing reports whether CostUsed/CostLimit carry meaningful figures.
func (s UsageSnapshot) CostBearing() bool {
	return s.PaymentType == PaymentCredits || s.PaymentType == PaymentUsageBased
}

type Bucket string

const (
	BucketPlans Bucket = "quota" // "Plans & Quotas"
	BucketPayGo Bucket = "paygo" // "Pay As You Go"
)

// BucketFor rederives group membership from payment semantics on every render.
func BucketFor(s UsageSnapshot) Bucket {
	if s.QuotaSemantics() || s.PaymentType == PaymentCredits {
		return BucketPlans
	}
	return BucketPayGo
}

func (b Bucket) Title() string {
	if b == BucketPlans {
		return "Plans & Quotas"
	}
	return "Pay As You Go"
}
