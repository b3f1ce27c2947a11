/**
 * @description
 * The profile reconciliation sub-protocol: given a customer and a subscription,
 * fetch the live mailbox account, compute the target storage profile through
 * the plan classifier, and issue at most one profile-change update. Already
 * selected profiles no-op; an entitlement the account's usage already exceeds
 * is an advisory, not a blocker.
 */
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
	"github.com/MarkM-Portfolio/atmail-webhooks/internal/plan"
)

func (e *Engine) profileReconcile(ctx context.Context, ref customerRef, sub *domain.Subscription, content map[string]json.RawMessage) *domain.Outcome {
	log := zerolog.Ctx(ctx)

	acct, err := e.accounts.ViewAccount(ctx, ref.accountKey())
	if err != nil {
		return accountErrOutcome(err, ref.String())
	}

	profiles := acct.Profiles()
	if len(profiles) == 0 {
		return &domain.Outcome{
			StatusCode: 500,
			Message:    "No storage profiles returned from mailserver",
			APISrc:     domain.SourceMailbox,
		}
	}

	ent, err := plan.PlanEntitlement(e.tenant, sub)
	if err != nil {
		return validationErrOutcome(err, ref.String())
	}

	var target *domain.StorageProfile
	for i := range profiles {
		if profiles[i].Name == ent.ProfileName {
			target = &profiles[i]
			break
		}
	}
	if target == nil {
		msg := fmt.Sprintf("Unknown storage profile name: %s, likely not a real %s account", ent.ProfileName, e.tenant)
		if ent.ProfileName == "" {
			msg = "No value for storage profile name"
		}
		return &domain.Outcome{
			StatusCode: 422,
			Message:    msg,
			APISrc:     domain.SourceMailbox,
		}
	}

	if ent.StorageBytes > 0 && acct.StorageUsedBytes() >= ent.StorageBytes {
		// Advisory only: the profile change still proceeds with the quota
		// check disabled.
		log.Warn().
			Int64("used_bytes", acct.StorageUsedBytes()).
			Int64("entitlement_bytes", ent.StorageBytes).
			Str("user", acct.Username).
			Msg("profile change puts account over quota")
	}

	current := acct.ActiveProfile()
	if current != nil && current.Name == target.Name {
		return &domain.Outcome{
			StatusCode: 200,
			Message:    fmt.Sprintf("Ignored Event: Current profile %s already selected. Skipping update", current.Name),
			APISrc:     domain.SourceMailbox,
		}
	}

	updated, err := e.accounts.UpdateAccount(ctx, ref.accountKey(), map[string]string{
		"cosProfileId":      strconv.Itoa(target.ID),
		"disableQuotaCheck": "1",
	})
	if err != nil {
		return accountErrOutcome(err, ref.String())
	}

	before := ""
	if current != nil {
		before = current.Name
	}
	log.Info().Str("user", updated.Username).Str("from", before).Str("to", target.Name).Msg("storage profile changed")
	return &domain.Outcome{
		StatusCode: 201,
		Message:    fmt.Sprintf("Update Success! %s => %s", before, target.Name),
		Data:       content,
		Object:     updated,
		APISrc:     domain.SourceMailbox,
	}
}
