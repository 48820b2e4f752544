package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ipxyd/ipxyd/internal/model"
	"github.com/ipxyd/ipxyd/internal/provider"
	"github.com/stretchr/testify/require"
)

func TestProbeAccountOKWhenUserInfoPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_info":{"status":"Active"}}`))
	}))
	defer srv.Close()

	acct := &model.ProviderAccount{Name: "acct", BaseURL: srv.URL, Username: "u", Password: "p"}
	result := ProbeAccount(context.Background(), acct, nil)
	require.Equal(t, provider.StatusOK, result.Status)
}

func TestProbeLineupCoversAllAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"auth":1}`))
	}))
	defer srv.Close()

	lineup := &InputLineup{
		InputName: "input-a",
		Main:      &model.ProviderAccount{Name: "main", BaseURL: srv.URL},
		Aliases:   []*model.ProviderAccount{{Name: "alias-1", BaseURL: srv.URL}},
	}
	results := ProbeLineup(context.Background(), lineup, nil)
	require.Len(t, results, 2)
	require.Equal(t, provider.StatusOK, results["main"].Status)
	require.Equal(t, provider.StatusOK, results["alias-1"].Status)
}
