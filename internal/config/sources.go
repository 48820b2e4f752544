package config

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// AccountSource is one provider credential entry under an input, either
// the input's own main account (inline on InputSource) or one of its
// aliases (spec §3 "all aliases of one input form a MultiProviderLineup").
type AccountSource struct {
	Name           string `yaml:"name"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	BaseURL        string `yaml:"base_url"`
	Priority       int16  `yaml:"priority"`
	MaxConnections uint16 `yaml:"max_connections"`
	ExpDate        int64  `yaml:"exp_date"`
}

// QueryParamSource is one panel_api query-parameter template entry.
type QueryParamSource struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// PanelAPISource is an input's panel_api block (spec §4.9).
type PanelAPISource struct {
	URL         string             `yaml:"url"`
	APIKey      string             `yaml:"api_key"`
	ClientInfo  []QueryParamSource `yaml:"client_info"`
	ClientNew   []QueryParamSource `yaml:"client_new"`
	ClientRenew []QueryParamSource `yaml:"client_renew"`
}

// InputSource is one provider input: its own credentials plus every
// alias account sharing its connection pool.
type InputSource struct {
	Name              string          `yaml:"name"`
	Type              string          `yaml:"type"` // "m3u" | "xtream"
	M3UURL            string          `yaml:"m3u_url"`
	XtreamBaseURL     string          `yaml:"xtream_base_url"`
	XtreamExt         string          `yaml:"xtream_ext"`
	Username          string          `yaml:"username"`
	Password          string          `yaml:"password"`
	BatchURL          string          `yaml:"batch_url"`
	Priority          int16           `yaml:"priority"`
	MaxConnections    uint16          `yaml:"max_connections"`
	ExpDate           int64           `yaml:"exp_date"`
	GracePeriodMillis int64           `yaml:"grace_period_millis"`
	GraceTimeoutSecs  int64           `yaml:"grace_timeout_secs"`
	PanelAPI          *PanelAPISource `yaml:"panel_api,omitempty"`
	Aliases           []AccountSource `yaml:"aliases,omitempty"`
}

// LocalVODSource configures the on-disk local library scan (spec §4.12).
type LocalVODSource struct {
	Target     string `yaml:"target"`
	RootDir    string `yaml:"root_dir"`
	MountPoint string `yaml:"mount_point,omitempty"`
}

// TargetSource is one provisioned destination: a name clients connect to,
// paired with the input whose lineup serves its media.
type TargetSource struct {
	Name          string `yaml:"name"`
	InputName     string `yaml:"input"`
	EPGShift      string `yaml:"epg_shift,omitempty"`
	EPGIconBase   string `yaml:"epg_icon_base,omitempty"`
	XMLTVURL      string `yaml:"xmltv_url,omitempty"`
	BufferEnabled bool   `yaml:"buffer_enabled"`
	BufferSize    int    `yaml:"buffer_size"`
	ShareStream   bool   `yaml:"share_stream"`
}

// UserSource is one subscriber entry (spec §3 "User"): the credentials
// clients present to any of this target's Xtream/M3U endpoints.
type UserSource struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Status         string `yaml:"status"` // "active" | "trial" | "expired" | "banned"
	MaxConnections uint32 `yaml:"max_connections"`
	ExpDate        int64  `yaml:"exp_date"`
	EPGTimeshift   string `yaml:"epg_timeshift,omitempty"`
}

// SourcesConfig is the full hot-reloadable source.yml document (spec §5
// "reload sources" / §4.9 "trigger a sources reload").
type SourcesConfig struct {
	DataDir       string          `yaml:"data_dir"`
	BouquetDir    string          `yaml:"bouquet_dir"`
	BaseURL       string          `yaml:"base_url"`
	EPGIconSecret string          `yaml:"epg_icon_secret"`
	Inputs        []InputSource   `yaml:"inputs"`
	Targets       []TargetSource  `yaml:"targets"`
	Users         []UserSource    `yaml:"users"`
	LocalVOD      *LocalVODSource `yaml:"local_vod,omitempty"`
}

// LoadSources reads and parses path as a SourcesConfig.
func LoadSources(path string) (*SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read sources: %w", err)
	}
	var cfg SourcesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse sources: %w", err)
	}
	return &cfg, nil
}

// SourcesStore holds the live SourcesConfig behind an atomic pointer so a
// panel-API provisioning run can swap in a freshly reloaded document
// without holding a lock across every request (spec §4.9's reload callback).
type SourcesStore struct {
	path string
	ptr  atomic.Pointer[SourcesConfig]
}

// OpenSourcesStore loads path once and returns a store primed with it.
func OpenSourcesStore(path string) (*SourcesStore, error) {
	cfg, err := LoadSources(path)
	if err != nil {
		return nil, err
	}
	s := &SourcesStore{path: path}
	s.ptr.Store(cfg)
	return s, nil
}

// Current returns the live SourcesConfig.
func (s *SourcesStore) Current() *SourcesConfig {
	return s.ptr.Load()
}

// Reload re-reads the backing file and swaps the live pointer. Matches
// panelapi.Provisioner.Reload's callback signature so a successful
// client_new/client_renew persist can trigger it directly.
func (s *SourcesStore) Reload(ctx context.Context) error {
	cfg, err := LoadSources(s.path)
	if err != nil {
		return err
	}
	s.ptr.Store(cfg)
	return nil
}
