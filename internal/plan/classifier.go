/**
 * @description
 * Plan classification: given a subscription and a tenant context, decide whether
 * its line items constitute an email/paid plan, which plan family they belong
 * to, and which storage quota / class-of-service profile they map to.
 *
 * Classification is a pure table lookup parameterised by tenant. Each tenant has
 * its own item-price-id prefix list and item-type allowlist; nothing outside the
 * tables branches on a tenant name.
 */
package plan

import (
	"strings"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
)

// Tenant identifies which billing instance an event is being processed for.
// It is resolved once at the transport boundary and passed as a typed
// parameter through the classifier and the engine.
type Tenant int

const (
	// TenantUnknown is the zero value; no rules match it.
	TenantUnknown Tenant = iota
	// TenantProvisioning is the account-provisioning instance ("tasman").
	TenantProvisioning
	// TenantBilling is the billing-flag instance ("msgco").
	TenantBilling
)

// String returns the tenant's instance name.
func (t Tenant) String() string {
	switch t {
	case TenantProvisioning:
		return "tasman"
	case TenantBilling:
		return "msgco"
	default:
		return "unknown"
	}
}

// ResolveTenant maps a billing instance name (e.g. "tasman-test") to its
// tenant. Test instances carry a "-test" suffix and share their production
// tenant's rules.
func ResolveTenant(instance string) Tenant {
	switch {
	case strings.Contains(instance, "tasman"):
		return TenantProvisioning
	case strings.Contains(instance, "msgco"):
		return TenantBilling
	default:
		return TenantUnknown
	}
}

// Plan families for the provisioning tenant's prefix set.
const (
	FamilyStandard = "email-tasman"
	FamilyLegacy   = "email-tasman-legacy"
)

// Entitlement is the storage quota and class-of-service profile a recognised
// plan maps to.
type Entitlement struct {
	StorageBytes int64
	ProfileName  string
}

const gib = int64(1024 * 1024 * 1024)

// tier binds one item-price-id prefix to a fixed entitlement. Order matters:
// the first prefix that matches an item decides the item's tier.
type tier struct {
	prefix      string
	entitlement Entitlement
}

// rules is the per-tenant classification table.
type rules struct {
	itemTypes map[string]bool
	tiers     []tier
	// derivedProfile, when set, computes the profile name from the item price
	// id instead of the fixed tier table.
	derivedProfile func(itemPriceID string) Entitlement
}

var tenantRules = map[Tenant]rules{
	TenantProvisioning: {
		itemTypes: map[string]bool{"plan": true},
		tiers:     []tier{{prefix: "email-"}},
		derivedProfile: func(itemPriceID string) Entitlement {
			// "email-tasman-standard-v1-NZD-Monthly" -> "email-tasman-standard-v1.group":
			// the trailing currency and period segments are not part of the profile.
			parts := strings.Split(strings.ToLower(itemPriceID), "-")
			if len(parts) > 2 {
				parts = parts[:len(parts)-2]
			}
			return Entitlement{ProfileName: strings.Join(parts, "-") + ".group"}
		},
	},
	TenantBilling: {
		itemTypes: map[string]bool{"plan": true, "addon": true, "charge": true},
		tiers: []tier{
			{prefix: "plan-av", entitlement: Entitlement{StorageBytes: 2 * gib, ProfileName: "Kakadu-Plan-AV1"}},
			{prefix: "plan-bv", entitlement: Entitlement{StorageBytes: 15 * gib, ProfileName: "Kakadu-Plan-BV1"}},
			{prefix: "plan-cv", entitlement: Entitlement{StorageBytes: 100 * gib, ProfileName: "Kakadu-Plan-CV1"}},
			{prefix: "complimentary-plan-", entitlement: Entitlement{StorageBytes: 100 * gib, ProfileName: "Kakadu-complimentary-plan"}},
		},
	},
}

// matchTier returns the first tier whose prefix matches the item price id.
func (r rules) matchTier(itemPriceID string) (tier, bool) {
	name := strings.ToLower(itemPriceID)
	for _, tr := range r.tiers {
		if strings.HasPrefix(name, tr.prefix) {
			return tr, true
		}
	}
	return tier{}, false
}

// errNoItems is raised when a subscription event arrived without its
// subscription_items list, which is a validation failure rather than an empty
// classification.
func errNoItems() error {
	return domain.NewValidationError("No subscription items")
}

// IsEmailPlan reports whether any allowed item of the subscription matches one
// of the tenant's plan-name prefixes.
func IsEmailPlan(tenant Tenant, sub *domain.Subscription) (bool, error) {
	if sub.SubscriptionItems == nil {
		return false, errNoItems()
	}
	r := tenantRules[tenant]
	for _, item := range sub.Items() {
		if !r.itemTypes[item.ItemType] {
			continue
		}
		if _, ok := r.matchTier(item.ItemPriceID); ok {
			return true, nil
		}
	}
	return false, nil
}

// IsPaidPlan reports whether any matching item exists, irrespective of the
// legacy/standard family split. Legacy items deliberately count as paid.
func IsPaidPlan(tenant Tenant, sub *domain.Subscription) (bool, error) {
	return IsEmailPlan(tenant, sub)
}

// PlanFamily classifies the subscription into the legacy or standard family.
// Among matching items the last one in declared order decides; an empty string
// means no item matched.
func PlanFamily(tenant Tenant, sub *domain.Subscription) (string, error) {
	if sub.SubscriptionItems == nil {
		return "", errNoItems()
	}
	r := tenantRules[tenant]
	family := ""
	for _, item := range sub.Items() {
		if !r.itemTypes[item.ItemType] {
			continue
		}
		if _, ok := r.matchTier(item.ItemPriceID); !ok {
			continue
		}
		if strings.Contains(strings.ToLower(item.ItemPriceID), "legacy") {
			family = FamilyLegacy
		} else {
			family = FamilyStandard
		}
	}
	return family, nil
}

// PlanEntitlement maps the subscription's recognised items to a storage quota
// and profile name. When multiple items match, the last one in the declared
// item order wins; the final match overwrites earlier ones. This last-wins
// policy is deliberate, not an error.
func PlanEntitlement(tenant Tenant, sub *domain.Subscription) (Entitlement, error) {
	if sub.SubscriptionItems == nil {
		return Entitlement{}, errNoItems()
	}
	r := tenantRules[tenant]
	var ent Entitlement
	for _, item := range sub.Items() {
		if !r.itemTypes[item.ItemType] {
			continue
		}
		tr, ok := r.matchTier(item.ItemPriceID)
		if !ok {
			continue
		}
		if r.derivedProfile != nil {
			ent = r.derivedProfile(item.ItemPriceID)
		} else {
			ent = tr.entitlement
		}
	}
	return ent, nil
}
