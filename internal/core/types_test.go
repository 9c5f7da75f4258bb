package core

import "testing"

func TestBucketFor(t *testing.T) {
	tests := []struct {
		name string
		snap UsageSnapshot
		want Bucket
	}{
		{"quota", UsageSnapshot{PaymentType: PaymentQuota}, BucketPlans},
		{"credits", UsageSnapshot{PaymentType: PaymentCredits}, BucketPlans},
		{"legacy quota flag", UsageSnapshot{PaymentType: PaymentUsageBased, IsQuotaBased: true}, BucketPlans},
		{"pay as you go", UsageSnapshot{PaymentType: PaymentUsageBased}, BucketPayGo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BucketFor(tt.snap); got != tt.want {
				t.Errorf("BucketFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCostBearing(t *testing.T) {
	if (UsageSnapshot{PaymentType: PaymentQuota}).CostBearing() {
		t.Error("quota snapshots should not be cost bearing")
	}
	if !(UsageSnapshot{PaymentType: PaymentCredits}).CostBearing() {
		t.Error("credits snapshots should be cost bearing")
	}
	if !(UsageSnapshot{PaymentType: PaymentUsageBased}).CostBearing() {
		t.Error("usage based snapshots should be cost bearing")
	}
}
