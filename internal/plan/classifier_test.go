package plan

import (
	"testing"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
)

func sub(items ...domain.SubscriptionItem) *domain.Subscription {
	return &domain.Subscription{
		ID:                "sub_1",
		CustomerID:        "cust_1",
		Status:            domain.SubscriptionStatusActive,
		SubscriptionItems: &items,
	}
}

func planItem(priceID string) domain.SubscriptionItem {
	return domain.SubscriptionItem{ItemPriceID: priceID, ItemType: "plan", Quantity: 1}
}

func TestResolveTenant(t *testing.T) {
	tests := []struct {
		instance string
		want     Tenant
	}{
		{instance: "tasman", want: TenantProvisioning},
		{instance: "tasman-test", want: TenantProvisioning},
		{instance: "msgco", want: TenantBilling},
		{instance: "msgco-test", want: TenantBilling},
		{instance: "somethingelse", want: TenantUnknown},
		{instance: "", want: TenantUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.instance, func(t *testing.T) {
			if got := ResolveTenant(tt.instance); got != tt.want {
				t.Fatalf("expected tenant %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIsEmailPlan(t *testing.T) {
	tests := []struct {
		name   string
		tenant Tenant
		sub    *domain.Subscription
		want   bool
	}{
		{
			name:   "provisioning email prefix matches",
			tenant: TenantProvisioning,
			sub:    sub(planItem("email-tasman-standard-v1-NZD-Monthly")),
			want:   true,
		},
		{
			name:   "provisioning non-email plan does not match",
			tenant: TenantProvisioning,
			sub:    sub(planItem("vpn-tasman-v1-NZD-Monthly")),
			want:   false,
		},
		{
			name:   "provisioning ignores addon items",
			tenant: TenantProvisioning,
			sub:    sub(domain.SubscriptionItem{ItemPriceID: "email-extras", ItemType: "addon"}),
			want:   false,
		},
		{
			name:   "billing plan-av matches",
			tenant: TenantBilling,
			sub:    sub(planItem("plan-av1-AUD-Monthly")),
			want:   true,
		},
		{
			name:   "billing complimentary plan matches",
			tenant: TenantBilling,
			sub:    sub(planItem("complimentary-plan-AUD-Monthly")),
			want:   true,
		},
		{
			name:   "billing addon item type is allowed",
			tenant: TenantBilling,
			sub:    sub(domain.SubscriptionItem{ItemPriceID: "plan-bv1-AUD-Monthly", ItemType: "addon"}),
			want:   true,
		},
		{
			name:   "billing unrelated price id does not match",
			tenant: TenantBilling,
			sub:    sub(planItem("email-account-AUD-Monthly")),
			want:   false,
		},
		{
			name:   "prefix match is case insensitive",
			tenant: TenantBilling,
			sub:    sub(planItem("Plan-AV1-AUD-Monthly")),
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsEmailPlan(tt.tenant, tt.sub)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestIsEmailPlanMissingItemsIsValidationError(t *testing.T) {
	s := &domain.Subscription{ID: "sub_1", Status: domain.SubscriptionStatusActive}

	_, err := IsEmailPlan(TenantBilling, s)
	if err == nil {
		t.Fatal("expected an error for missing subscription items")
	}
	if !domain.IsValidation(err) {
		t.Fatalf("expected a validation error, got %T", err)
	}
}

func TestPlanFamily(t *testing.T) {
	tests := []struct {
		name string
		sub  *domain.Subscription
		want string
	}{
		{
			name: "standard plan",
			sub:  sub(planItem("email-tasman-standard-v1-NZD-Monthly")),
			want: FamilyStandard,
		},
		{
			name: "legacy plan",
			sub:  sub(planItem("email-tasman-legacy-v1-NZD-Monthly")),
			want: FamilyLegacy,
		},
		{
			name: "last matching item decides",
			sub: sub(
				planItem("email-tasman-legacy-v1-NZD-Monthly"),
				planItem("email-tasman-standard-v1-NZD-Monthly"),
			),
			want: FamilyStandard,
		},
		{
			name: "no matching item yields empty family",
			sub:  sub(planItem("vpn-tasman-v1-NZD-Monthly")),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanFamily(TenantProvisioning, tt.sub)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected family %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPlanEntitlementBillingTiers(t *testing.T) {
	const gib = int64(1024 * 1024 * 1024)

	tests := []struct {
		name        string
		priceID     string
		wantBytes   int64
		wantProfile string
	}{
		{name: "av tier", priceID: "plan-av1-AUD-Monthly", wantBytes: 2 * gib, wantProfile: "Kakadu-Plan-AV1"},
		{name: "bv tier", priceID: "plan-bv1-AUD-Monthly", wantBytes: 15 * gib, wantProfile: "Kakadu-Plan-BV1"},
		{name: "cv tier", priceID: "plan-cv1-AUD-Monthly", wantBytes: 100 * gib, wantProfile: "Kakadu-Plan-CV1"},
		{name: "complimentary tier", priceID: "complimentary-plan-AUD-Monthly", wantBytes: 100 * gib, wantProfile: "Kakadu-complimentary-plan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ent, err := PlanEntitlement(TenantBilling, sub(planItem(tt.priceID)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ent.StorageBytes != tt.wantBytes {
				t.Fatalf("expected %d storage bytes, got %d", tt.wantBytes, ent.StorageBytes)
			}
			if ent.ProfileName != tt.wantProfile {
				t.Fatalf("expected profile %q, got %q", tt.wantProfile, ent.ProfileName)
			}
		})
	}
}

func TestPlanEntitlementLastWins(t *testing.T) {
	// With multiple recognised items the final one in declared order decides,
	// regardless of relative size.
	bvThenCv := sub(planItem("plan-bv1-AUD-Monthly"), planItem("plan-cv1-AUD-Monthly"))
	ent, err := PlanEntitlement(TenantBilling, bvThenCv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ent.ProfileName != "Kakadu-Plan-CV1" {
		t.Fatalf("expected cv profile to win, got %q", ent.ProfileName)
	}

	cvThenBv := sub(planItem("plan-cv1-AUD-Monthly"), planItem("plan-bv1-AUD-Monthly"))
	ent, err = PlanEntitlement(TenantBilling, cvThenBv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ent.ProfileName != "Kakadu-Plan-BV1" {
		t.Fatalf("expected bv profile to win, got %q", ent.ProfileName)
	}
}

func TestPlanEntitlementDerivedProfile(t *testing.T) {
	tests := []struct {
		priceID string
		want    string
	}{
		{priceID: "email-tasman-standard-v1-NZD-Monthly", want: "email-tasman-standard-v1.group"},
		{priceID: "email-tasman-legacy-v2-NZD-Yearly", want: "email-tasman-legacy-v2.group"},
		{priceID: "Email-Tasman-Basic-AUD-Monthly", want: "email-tasman-basic.group"},
	}

	for _, tt := range tests {
		t.Run(tt.priceID, func(t *testing.T) {
			ent, err := PlanEntitlement(TenantProvisioning, sub(planItem(tt.priceID)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ent.ProfileName != tt.want {
				t.Fatalf("expected profile %q, got %q", tt.want, ent.ProfileName)
			}
		})
	}
}

func TestPlanEntitlementNoMatchIsEmpty(t *testing.T) {
	ent, err := PlanEntitlement(TenantBilling, sub(planItem("vpn-plan-AUD-Monthly")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ent.ProfileName != "" || ent.StorageBytes != 0 {
		t.Fatalf("expected empty entitlement, got %+v", ent)
	}
}
