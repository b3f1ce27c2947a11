package secrets

import "testing"

const testBlob = `{
	"MSGCO_API_KEY": "key_msgco",
	"MSGCO_WEBHOOK_USERNAME": "msgco_hook",
	"MSGCO_WEBHOOK_PASSWORD": "msgco_pass",
	"TASMAN_API_KEY": "key_tasman",
	"TASMAN_WEBHOOK_USERNAME": "tasman_hook",
	"TASMAN_WEBHOOK_PASSWORD": "tasman_pass",
	"MAILSERVER_URL": "https://admin.[platform].example.com/api",
	"MAILSERVER_USERNAME": "admin",
	"MAILSERVER_PASSWORD": "secret"
}`

func TestParseSubstitutesPlatformInMailServerURL(t *testing.T) {
	store, err := parse([]byte(testBlob), "pc5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://admin.pc5.example.com/api"
	if store.MailServer.APIURL != want {
		t.Fatalf("expected url %q, got %q", want, store.MailServer.APIURL)
	}
	if store.MailServer.Username != "admin" || store.MailServer.Password != "secret" {
		t.Fatal("mail server credentials not decoded")
	}
}

func TestTenantLookupStripsTestSuffix(t *testing.T) {
	store, err := parse([]byte(testBlob), "pc5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		instance string
		wantKey  string
		wantOK   bool
	}{
		{instance: "msgco", wantKey: "key_msgco", wantOK: true},
		{instance: "msgco-test", wantKey: "key_msgco", wantOK: true},
		{instance: "tasman", wantKey: "key_tasman", wantOK: true},
		{instance: "tasman-test", wantKey: "key_tasman", wantOK: true},
		{instance: "othersite", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.instance, func(t *testing.T) {
			creds, ok := store.Tenant(tt.instance)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%t, got %t", tt.wantOK, ok)
			}
			if ok && creds.APIKey != tt.wantKey {
				t.Fatalf("expected api key %q, got %q", tt.wantKey, creds.APIKey)
			}
		})
	}
}

func TestParseRejectsMalformedBlob(t *testing.T) {
	if _, err := parse([]byte(`{"MSGCO_API_KEY":`), "pc5"); err == nil {
		t.Fatal("expected an error for a malformed blob")
	}
}

func TestInstancesListsKnownTenants(t *testing.T) {
	store, err := parse([]byte(testBlob), "pc5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := store.Instances()
	if len(names) != 2 {
		t.Fatalf("expected two instances, got %v", names)
	}
	seen := map[string]bool{}
	for _, name := range names {
		seen[name] = true
	}
	if !seen["msgco"] || !seen["tasman"] {
		t.Fatalf("expected msgco and tasman, got %v", names)
	}
}
