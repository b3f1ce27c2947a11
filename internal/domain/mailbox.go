/**
 * @description
 * This file models the mailserver account snapshot returned by the account
 * gateway. The reconciliation engine reads the live snapshot on every decision
 * and issues at most one corrective update against it.
 */
package domain

// Mailbox account statuses as the mailserver enumerates them.
const (
	AccountStatusActive     = "active"
	AccountStatusRestricted = "rstrBilling"
	AccountStatusFrozen     = "rstrFrozen"
	AccountStatusDisabled   = "disabled"
	AccountStatusDeleted    = "deleted"
)

// StorageProfile is one class-of-service profile the account is entitled to.
// Exactly one profile in an account's list is active at a time.
type StorageProfile struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// StorageProfileGroup is the mailserver's grouping of profiles by origin.
type StorageProfileGroup struct {
	Profile []StorageProfile `json:"profile"`
	Origin  string           `json:"origin"`
}

// Account is the mailserver account snapshot.
type Account struct {
	AccountID     string                `json:"accountId"`
	Username      string                `json:"username"`
	FirstName     string                `json:"firstName,omitempty"`
	LastName      string                `json:"lastName,omitempty"`
	AccountStatus string                `json:"account_status,omitempty"`
	CosProfile    []StorageProfileGroup `json:"cosProfile,omitempty"`
	DomainID      string                `json:"domainId,omitempty"`
	BillingCode   string                `json:"billingCode,omitempty"`
	Quota         string                `json:"quota,omitempty"`
	MailUsedBytes int64                 `json:"mailUsedBytes,omitempty"`
	FileUsedBytes int64                 `json:"fileUsedBytes,omitempty"`
	TotalMessages int64                 `json:"TotalMessages,omitempty"`
	QuotaStatus   string                `json:"quotaStatus,omitempty"`
}

// StorageUsedBytes is the account's combined mail and file storage usage.
func (a *Account) StorageUsedBytes() int64 {
	return a.MailUsedBytes + a.FileUsedBytes
}

// Profiles returns the account's flattened profile list. The mailserver nests
// profiles one group deep; only the first group is meaningful.
func (a *Account) Profiles() []StorageProfile {
	if len(a.CosProfile) == 0 {
		return nil
	}
	return a.CosProfile[0].Profile
}

// ActiveProfile returns the currently selected profile, or nil when the
// mailserver reports none as active.
func (a *Account) ActiveProfile() *StorageProfile {
	profiles := a.Profiles()
	for i := range profiles {
		if profiles[i].Active {
			return &profiles[i]
		}
	}
	return nil
}
