package panelapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func newProvisionerTestServer(t *testing.T, responses map[string]string) Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var key string
		switch {
		case q.Get("renew") == "1":
			key = "renew"
		case q.Get("new") == "1":
			key = "new"
		case q.Get("info") == "1":
			key = "info:" + q.Get("username")
		}
		if body, ok := responses[key]; ok {
			w.Write([]byte(body))
			return
		}
		w.Write([]byte(`{"status":false}`))
	}))
	t.Cleanup(srv.Close)

	return Config{
		URL:    srv.URL + "/api",
		APIKey: "panel-key",
		ClientNew: []QueryParam{
			{Key: "api_key", Value: "auto"},
			{Key: "type", Value: "m3u"},
			{Key: "new", Value: "1"},
		},
		ClientRenew: []QueryParam{
			{Key: "api_key", Value: "auto"},
			{Key: "type", Value: "m3u"},
			{Key: "username", Value: "auto"},
			{Key: "password", Value: "auto"},
			{Key: "renew", Value: "1"},
		},
		ClientInfo: []QueryParam{
			{Key: "api_key", Value: "auto"},
			{Key: "username", Value: "auto"},
			{Key: "password", Value: "auto"},
			{Key: "info", Value: "1"},
		},
	}
}

func newProvisioner(t *testing.T, sourcesPath string) (*Provisioner, *int) {
	reloadCount := 0
	p := NewProvisioner(NewClient(nil), NewKeyedLocks(), sourcesPath, func(ctx context.Context) error {
		reloadCount++
		return nil
	})
	return p, &reloadCount
}

func TestProvisionOnExhaustedRenewsExpiredAccountAndReloads(t *testing.T) {
	cfg := newProvisionerTestServer(t, map[string]string{
		"renew":    `{"status":true}`,
		"info:bob": `{"status":true,"expire":"1900000000"}`,
	})
	path := writeSample(t) // input name "input-a", username bob/password s3cr3t in the fixture

	p, reloadCount := newProvisioner(t, path)
	input := Input{
		Name:     "input-a",
		URL:      "http://panel.example/playlist.m3u",
		Username: "bob",
		Password: "s3cr3t",
		ExpDate:  1,
		PanelAPI: &cfg,
	}

	ok := p.ProvisionOnExhausted(context.Background(), input)
	require.True(t, ok)
	require.Equal(t, 1, *reloadCount)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "exp_date: 1900000000")
}

func TestProvisionOnExhaustedFallsBackToClientNewWhenNothingToRenew(t *testing.T) {
	cfg := newProvisionerTestServer(t, map[string]string{
		"new":        `{"status":true,"username":"carol","password":"pw9"}`,
		"info:carol": `{"status":true,"expire":"1900000000"}`,
	})
	path := writeSample(t)

	p, reloadCount := newProvisioner(t, path)
	input := Input{
		Name:     "input-a",
		URL:      "http://panel.example/playlist.m3u",
		Username: "bob",
		Password: "s3cr3t",
		ExpDate:  0, // not expired, nothing to renew
		PanelAPI: &cfg,
	}

	ok := p.ProvisionOnExhausted(context.Background(), input)
	require.True(t, ok)
	require.Equal(t, 1, *reloadCount)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "name: input-a-carol")
}

func TestProvisionOnExhaustedFalseWithoutPanelAPIConfigured(t *testing.T) {
	path := writeSample(t)
	p, _ := newProvisioner(t, path)
	ok := p.ProvisionOnExhausted(context.Background(), Input{Name: "input-a"})
	require.False(t, ok)
}

func TestProvisionOnExhaustedFalseWhenConfigInvalid(t *testing.T) {
	path := writeSample(t)
	bad := Config{URL: "http://panel.example", APIKey: "k"} // missing query_parameter sections
	p, _ := newProvisioner(t, path)
	input := Input{Name: "input-a", PanelAPI: &bad}
	ok := p.ProvisionOnExhausted(context.Background(), input)
	require.False(t, ok)
}

func TestSyncExpDatesOnBootPersistsChangedExpiryOnce(t *testing.T) {
	cfg := newProvisionerTestServer(t, map[string]string{
		"info:bob": `{"status":true,"expire":"1900000000"}`,
	})
	path := writeSample(t)
	p, reloadCount := newProvisioner(t, path)

	inputs := []Input{{
		Name:     "input-a",
		URL:      "http://panel.example/playlist.m3u",
		Username: "bob",
		Password: "s3cr3t",
		ExpDate:  1,
		PanelAPI: &cfg,
	}}

	p.SyncExpDatesOnBoot(context.Background(), inputs)
	require.Equal(t, 1, *reloadCount)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "exp_date: 1900000000")
}

func TestSyncExpDatesOnBootSkipsWhenNothingChanged(t *testing.T) {
	cfg := newProvisionerTestServer(t, map[string]string{
		"info:bob": `{"status":true,"expire":"1"}`,
	})
	path := writeSample(t)
	p, reloadCount := newProvisioner(t, path)

	inputs := []Input{{
		Name:     "input-a",
		URL:      "http://panel.example/playlist.m3u",
		Username: "bob",
		Password: "s3cr3t",
		ExpDate:  1,
		PanelAPI: &cfg,
	}}

	p.SyncExpDatesOnBoot(context.Background(), inputs)
	require.Equal(t, 0, *reloadCount)
}
