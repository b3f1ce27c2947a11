/**
 * @description
 * This package loads the service's credentials from AWS Secrets Manager at
 * startup. One secret blob carries every tenant's Chargebee API key and webhook
 * Basic-auth credentials plus the shared mail server endpoint and admin login.
 *
 * The mail server URL is stored with a "[platform]" placeholder so the same
 * secret serves every platform; the placeholder is substituted here.
 *
 * @dependencies
 * - github.com/aws/aws-sdk-go-v2/config: AWS credential and region resolution.
 * - github.com/aws/aws-sdk-go-v2/service/secretsmanager: Secrets Manager client.
 */

package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// TenantCredentials are one Chargebee site's API key and the Basic-auth
// credentials its webhook configuration sends us.
type TenantCredentials struct {
	APIKey          string
	WebhookUsername string
	WebhookPassword string
}

// MailServerCredentials locate and authenticate against the mail server admin
// API.
type MailServerCredentials struct {
	APIURL   string
	Username string
	Password string
}

// Store holds the decoded secret blob, keyed by Chargebee instance name.
type Store struct {
	tenants    map[string]TenantCredentials
	MailServer MailServerCredentials
}

// blob is the raw JSON shape of the chargebee-secrets secret.
type blob struct {
	MsgcoAPIKey           string `json:"MSGCO_API_KEY"`
	MsgcoWebhookUsername  string `json:"MSGCO_WEBHOOK_USERNAME"`
	MsgcoWebhookPassword  string `json:"MSGCO_WEBHOOK_PASSWORD"`
	TasmanAPIKey          string `json:"TASMAN_API_KEY"`
	TasmanWebhookUsername string `json:"TASMAN_WEBHOOK_USERNAME"`
	TasmanWebhookPassword string `json:"TASMAN_WEBHOOK_PASSWORD"`
	MailServerURL         string `json:"MAILSERVER_URL"`
	MailServerUsername    string `json:"MAILSERVER_USERNAME"`
	MailServerPassword    string `json:"MAILSERVER_PASSWORD"`
}

// NewStatic builds a store from in-memory credentials. Used by tests and local
// development where Secrets Manager is not available.
func NewStatic(tenants map[string]TenantCredentials, mailServer MailServerCredentials) *Store {
	return &Store{tenants: tenants, MailServer: mailServer}
}

// Load fetches and decodes the secret blob. The platform value replaces the
// "[platform]" placeholder in the stored mail server URL.
func Load(ctx context.Context, region, secretID, platform string) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch secret %s: %w", secretID, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", secretID)
	}

	return parse([]byte(*out.SecretString), platform)
}

func parse(raw []byte, platform string) (*Store, error) {
	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to decode secret blob: %w", err)
	}

	store := &Store{
		tenants: map[string]TenantCredentials{
			"msgco": {
				APIKey:          b.MsgcoAPIKey,
				WebhookUsername: b.MsgcoWebhookUsername,
				WebhookPassword: b.MsgcoWebhookPassword,
			},
			"tasman": {
				APIKey:          b.TasmanAPIKey,
				WebhookUsername: b.TasmanWebhookUsername,
				WebhookPassword: b.TasmanWebhookPassword,
			},
		},
		MailServer: MailServerCredentials{
			APIURL:   strings.ReplaceAll(b.MailServerURL, "[platform]", platform),
			Username: b.MailServerUsername,
			Password: b.MailServerPassword,
		},
	}
	return store, nil
}

// Tenant looks up credentials for a Chargebee instance name. Sandbox instances
// carry a "-test" suffix but share the production instance's credentials.
func (s *Store) Tenant(instance string) (TenantCredentials, bool) {
	creds, ok := s.tenants[strings.TrimSuffix(instance, "-test")]
	return creds, ok
}

// Instances returns the known Chargebee instance names.
func (s *Store) Instances() []string {
	names := make([]string, 0, len(s.tenants))
	for name := range s.tenants {
		names = append(names, name)
	}
	return names
}
