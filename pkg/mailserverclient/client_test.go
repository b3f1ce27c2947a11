package mailserverclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkM-Portfolio/atmail-webhooks/internal/domain"
)

func TestViewAccountParsesSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/accounts/view", r.URL.Path)
		require.Equal(t, "a@b.co", r.URL.Query().Get("username"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "admin", user)
		require.Equal(t, "secret", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","response":{"results":{
			"accountId":"acc_1","username":"a@b.co","account_status":"active",
			"cosProfile":[{"origin":"system","profile":[{"id":1,"name":"Kakadu-Plan-AV1","active":true}]}]
		}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	account, err := client.ViewAccount(context.Background(), "a@b.co")
	require.NoError(t, err)
	require.Equal(t, "acc_1", account.AccountID)
	require.Equal(t, domain.AccountStatusActive, account.AccountStatus)

	active := account.ActiveProfile()
	require.NotNil(t, active)
	require.Equal(t, "Kakadu-Plan-AV1", active.Name)
}

func TestViewAccountMissingAccountIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","response":{"message":"Specify accountId/username argument"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	_, err := client.ViewAccount(context.Background(), "missing@b.co")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrAccountNotFound))
}

func TestUpdateAccountSendsFieldsAsQueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/accounts/update", r.URL.Path)
		require.Equal(t, "a@b.co", r.URL.Query().Get("username"))
		require.Equal(t, "rstrBilling", r.URL.Query().Get("account_status"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","response":{"results":{"accountId":"acc_1","username":"a@b.co","account_status":"rstrBilling"}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	account, err := client.UpdateAccount(context.Background(), "a@b.co", map[string]string{"account_status": "rstrBilling"})
	require.NoError(t, err)
	require.Equal(t, domain.AccountStatusRestricted, account.AccountStatus)
}

func TestUpdateAccountMissingAccountIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","response":{"message":"Account a@b.co does not exist"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	_, err := client.UpdateAccount(context.Background(), "a@b.co", map[string]string{"account_status": "active"})
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrAccountNotFound))
}

func TestUpdateAccountRejectsEmptyFieldSet(t *testing.T) {
	client := NewClient("http://localhost:0", "admin", "secret")
	_, err := client.UpdateAccount(context.Background(), "a@b.co", nil)
	require.Error(t, err)
}

func TestOtherAPIErrorsAreNotNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","response":{"message":"internal database error"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")
	_, err := client.ViewAccount(context.Background(), "a@b.co")
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrAccountNotFound))
	require.Contains(t, err.Error(), "internal database error")
}
