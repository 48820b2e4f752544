package panelapi

import (
	"fmt"
	"strings"
)

// QueryParam is one configured query-string parameter; Value "auto" is
// substituted at call time from the panel's api_key or the account's
// username/password (spec §4.9 step 2).
type QueryParam struct {
	Key   string
	Value string
}

// Config is one input's panel_api block: the base URL plus the three
// query-parameter templates used to renew, create, and inspect accounts.
type Config struct {
	URL         string
	APIKey      string
	ClientInfo  []QueryParam
	ClientNew   []QueryParam
	ClientRenew []QueryParam
}

func findParam(params []QueryParam, key string) (QueryParam, bool) {
	for _, p := range params {
		if strings.EqualFold(strings.TrimSpace(p.Key), key) {
			return p, true
		}
	}
	return QueryParam{}, false
}

func hasParam(params []QueryParam, key string) bool {
	_, ok := findParam(params, key)
	return ok
}

func validateTypeIsM3U(params []QueryParam) error {
	p, ok := findParam(params, "type")
	if !ok {
		return fmt.Errorf("panel_api: missing required query param 'type=m3u'")
	}
	if !strings.EqualFold(strings.TrimSpace(p.Value), "m3u") {
		return fmt.Errorf("panel_api: unsupported type=%s, only m3u is supported", p.Value)
	}
	return nil
}

func requireAPIKeyParam(params []QueryParam, section string) error {
	p, ok := findParam(params, "api_key")
	if !ok {
		return fmt.Errorf("panel_api: %s must contain query param 'api_key' (use value 'auto')", section)
	}
	if strings.TrimSpace(p.Value) == "" {
		return fmt.Errorf("panel_api: %s query param 'api_key' must not be empty (use value 'auto')", section)
	}
	return nil
}

func requireUsernamePasswordParamsAuto(params []QueryParam, section string) error {
	u, uok := findParam(params, "username")
	p, pok := findParam(params, "password")
	if !uok || !pok {
		return fmt.Errorf("panel_api: %s must contain query params 'username' and 'password' (use value 'auto')", section)
	}
	if !strings.EqualFold(strings.TrimSpace(u.Value), "auto") || !strings.EqualFold(strings.TrimSpace(p.Value), "auto") {
		return fmt.Errorf("panel_api: %s requires 'username: auto' and 'password: auto' (credentials must not be hardcoded)", section)
	}
	return nil
}

func validateClientNewParams(params []QueryParam) error {
	if err := requireAPIKeyParam(params, "query_parameter.client_new"); err != nil {
		return err
	}
	if err := validateTypeIsM3U(params); err != nil {
		return err
	}
	if hasParam(params, "user") {
		return fmt.Errorf("panel_api: client_new must not contain query param 'user'")
	}
	return nil
}

func validateClientRenewParams(params []QueryParam) error {
	if err := requireAPIKeyParam(params, "query_parameter.client_renew"); err != nil {
		return err
	}
	if err := validateTypeIsM3U(params); err != nil {
		return err
	}
	return requireUsernamePasswordParamsAuto(params, "query_parameter.client_renew")
}

func validateClientInfoParams(params []QueryParam) error {
	if err := requireAPIKeyParam(params, "query_parameter.client_info"); err != nil {
		return err
	}
	return requireUsernamePasswordParamsAuto(params, "query_parameter.client_info")
}

// ValidateConfig checks a panel_api block per spec §4.9 step 2: non-empty
// url/api_key, and each section template carrying the params its call
// shape requires.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return fmt.Errorf("panel_api: url is missing")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("panel_api: api_key is missing")
	}
	if len(cfg.ClientInfo) == 0 || len(cfg.ClientNew) == 0 || len(cfg.ClientRenew) == 0 {
		return fmt.Errorf("panel_api: query_parameter.client_info/client_new/client_renew must be configured")
	}
	if err := validateClientInfoParams(cfg.ClientInfo); err != nil {
		return err
	}
	if err := validateClientNewParams(cfg.ClientNew); err != nil {
		return err
	}
	if err := validateClientRenewParams(cfg.ClientRenew); err != nil {
		return err
	}
	return nil
}
