// Command ipxyd runs the IPTV reverse-proxy/aggregator server: it loads
// source.yml, builds a per-input provider lineup and per-target virtual
// catalog, ingests each input's playlist, and serves every emulated
// protocol (Xtream, M3U, XMLTV, HDHomeRun) over HTTP.
package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/ipxyd/ipxyd/internal/allocator"
	"github.com/ipxyd/ipxyd/internal/config"
	"github.com/ipxyd/ipxyd/internal/credentials"
	"github.com/ipxyd/ipxyd/internal/dispatch"
	"github.com/ipxyd/ipxyd/internal/httpclient"
	"github.com/ipxyd/ipxyd/internal/ingest"
	"github.com/ipxyd/ipxyd/internal/localvod"
	"github.com/ipxyd/ipxyd/internal/model"
	"github.com/ipxyd/ipxyd/internal/obscure"
	"github.com/ipxyd/ipxyd/internal/panelapi"
	"github.com/ipxyd/ipxyd/internal/streaming"
	"github.com/ipxyd/ipxyd/internal/users"
	"github.com/ipxyd/ipxyd/internal/virtualid"

	"github.com/ipxyd/ipxyd/internal/bptree"
)

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("ipxyd: fatal startup error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	sources, err := config.OpenSourcesStore(cfg.SourcesFile)
	if err != nil {
		return err
	}
	sc := sources.Current()

	dataDir := sc.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	userMgr := users.New(cfg.GracePeriodMillis, cfg.GraceTimeoutSecs, cfg.SessionTTL, nil)
	userStore := config.NewUserStore(sources)
	credCatalog := credentials.NewCatalog()

	fetcher := streaming.NewFetcher()
	var shared *streaming.SharedStreamManager
	var shareStream, bufferEnabled bool
	var bufferSize int
	for _, t := range sc.Targets {
		if t.ShareStream {
			shareStream = true
		}
		if t.BufferEnabled {
			bufferEnabled = true
			bufferSize = t.BufferSize
		}
	}
	if shareStream {
		shared = streaming.NewSharedStreamManager(fetcher)
	}

	svc := dispatch.NewService(userStore, userMgr, fetcher, shared, logger)
	svc.BouquetDir = sc.BouquetDir
	svc.BaseURL = sc.BaseURL
	svc.Credentials = credCatalog
	svc.ShareStream = shareStream
	svc.BufferEnabled = bufferEnabled
	svc.BufferSize = bufferSize

	panelClient := panelapi.NewClient(httpclient.Default())
	panelLocks := panelapi.NewKeyedLocks()
	snapshot, err := panelapi.OpenSnapshotStore(filepath.Join(dataDir, "panelapi.db"))
	if err != nil {
		return err
	}
	provisioner := panelapi.NewProvisioner(panelClient, panelLocks, cfg.SourcesFile, sources.Reload)
	provisioner.Snapshot = snapshot
	provisioner.Logger = logger

	lineups := make(map[string]*allocator.Lineup)
	var cleanups []func()
	defer func() {
		for _, c := range cleanups {
			c()
		}
	}()

	httpClient := httpclient.Default()

	for _, in := range sc.Inputs {
		lineups[in.Name] = buildLineup(in)
		credCatalog.Set(buildCredentialLineup(in))
	}

	vidDir := filepath.Join(dataDir, "virtualid")
	if err := os.MkdirAll(vidDir, 0o755); err != nil {
		return err
	}

	var iconCodec *obscure.Codec
	if sc.EPGIconSecret != "" {
		iconCodec, err = obscure.NewCodec([]byte(sc.EPGIconSecret))
		if err != nil {
			return err
		}
	}

	for _, ts := range sc.Targets {
		lineup, ok := lineups[ts.InputName]
		if !ok {
			logger.Warn().Str("target", ts.Name).Str("input", ts.InputName).Msg("ipxyd: skipping target, unknown input")
			continue
		}

		targetDir := filepath.Join(dataDir, ts.Name)
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return err
		}
		store, err := dispatch.OpenTargetStore(targetDir, ts.Name, bptree.Update)
		if err != nil {
			return err
		}

		vidAllocator, err := virtualid.Open(filepath.Join(vidDir, ts.Name+".db"), bptree.Update)
		if err != nil {
			return err
		}

		target := &dispatch.Target{
			Name:      ts.Name,
			Catalog:   store,
			Lineup:    lineup,
			InputName: ts.InputName,
		}
		if ts.EPGShift != "" {
			if d, err := time.ParseDuration(ts.EPGShift); err == nil {
				target.EPGShift = d
			}
		}
		if iconCodec != nil {
			target.EPGIcons = iconCodec
			target.EPGIconBase = ts.EPGIconBase
		}
		if ts.XMLTVURL != "" {
			if path, err := cacheXMLTV(httpClient, ts.XMLTVURL, targetDir); err != nil {
				logger.Warn().Err(err).Str("target", ts.Name).Msg("ipxyd: xmltv fetch failed, guide disabled")
			} else {
				target.EPGSourcePath = path
			}
		}
		svc.AddTarget(target)

		items, err := ingestInput(sc, ts.InputName, httpClient)
		if err != nil {
			logger.Warn().Err(err).Str("input", ts.InputName).Msg("ipxyd: ingest failed")
			items = nil
		}

		if sc.LocalVOD != nil && sc.LocalVOD.Target == ts.Name {
			localItems, localCleanup, err := ingestLocalVOD(*sc.LocalVOD, ts.InputName, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("ipxyd: local vod scan failed")
			} else {
				items = append(items, localItems...)
				cleanups = append(cleanups, localCleanup...)
			}
		}

		if err := assignVirtualIDsAndStore(vidAllocator, store, items); err != nil {
			logger.Warn().Err(err).Str("target", ts.Name).Msg("ipxyd: failed to persist catalog")
		}
	}

	var expireInputs []panelapi.Input
	for _, in := range sc.Inputs {
		if pi, ok, err := toPanelInput(in); err == nil && ok {
			expireInputs = append(expireInputs, pi)
		}
	}
	provisioner.SyncExpDatesOnBoot(context.Background(), expireInputs)
	svc.Logger.Info().Int("inputs", len(sc.Inputs)).Int("targets", len(sc.Targets)).Msg("ipxyd: startup complete")

	handler := svc.NewRouter()
	server := &http.Server{Addr: cfg.ListenAddr, Handler: handler}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("ipxyd: listening")
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("ipxyd: server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildLineup turns one configured input into an allocator.Lineup: a
// Single lineup when it has no aliases, a Multi lineup with one
// priority group per distinct alias priority otherwise (spec §4.2's two
// lineup shapes).
func buildLineup(in config.InputSource) *allocator.Lineup {
	mainAccount := allocator.NewAccount(in.Name, in.MaxConnections)
	if len(in.Aliases) == 0 {
		return allocator.NewSingleLineupWithGrace(mainAccount, in.GracePeriodMillis, in.GraceTimeoutSecs)
	}

	byPriority := map[int16][]*allocator.Account{}
	byPriority[in.Priority] = append(byPriority[in.Priority], mainAccount)
	for _, a := range in.Aliases {
		byPriority[a.Priority] = append(byPriority[a.Priority], allocator.NewAccount(a.Name, a.MaxConnections))
	}
	groups := make([]*allocator.PriorityGroup, 0, len(byPriority))
	for p, accts := range byPriority {
		groups = append(groups, allocator.NewPriorityGroup(p, accts, in.GracePeriodMillis, in.GraceTimeoutSecs))
	}
	return allocator.NewMultiLineup(groups)
}

// buildCredentialLineup adapts one configured input into the real
// credential catalog the dispatcher resolves allocator account names
// against to build upstream URLs.
func buildCredentialLineup(in config.InputSource) *credentials.InputLineup {
	lineup := &credentials.InputLineup{
		InputName: in.Name,
		InputType: in.Type,
		BatchURL:  in.BatchURL,
		Main: &model.ProviderAccount{
			Name: in.Name, InputName: in.Name,
			Username: in.Username, Password: in.Password,
			BaseURL: in.XtreamBaseURL, Priority: in.Priority,
			MaxConnections: in.MaxConnections, ExpDate: in.ExpDate,
		},
	}
	for _, a := range in.Aliases {
		lineup.Aliases = append(lineup.Aliases, &model.ProviderAccount{
			Name: a.Name, InputName: in.Name,
			Username: a.Username, Password: a.Password,
			BaseURL: a.BaseURL, Priority: a.Priority,
			MaxConnections: a.MaxConnections, ExpDate: a.ExpDate,
		})
	}
	return lineup
}

// toPanelInput adapts a configured input that declares a panel_api block
// into the panelapi package's own Input/Config shape, for the boot-time
// expiry sync.
func toPanelInput(in config.InputSource) (panelapi.Input, bool, error) {
	if in.PanelAPI == nil {
		return panelapi.Input{}, false, nil
	}
	pi := panelapi.Input{
		Name: in.Name, URL: in.XtreamBaseURL,
		Username: in.Username, Password: in.Password, ExpDate: in.ExpDate,
		InputType: in.Type, BatchURL: in.BatchURL,
		PanelAPI: &panelapi.Config{
			URL: in.PanelAPI.URL, APIKey: in.PanelAPI.APIKey,
			ClientInfo:  toQueryParams(in.PanelAPI.ClientInfo),
			ClientNew:   toQueryParams(in.PanelAPI.ClientNew),
			ClientRenew: toQueryParams(in.PanelAPI.ClientRenew),
		},
	}
	for _, a := range in.Aliases {
		pi.Aliases = append(pi.Aliases, panelapi.Account{Name: a.Name, Username: a.Username, Password: a.Password, ExpDate: a.ExpDate})
	}
	return pi, true, nil
}

func toQueryParams(in []config.QueryParamSource) []panelapi.QueryParam {
	out := make([]panelapi.QueryParam, 0, len(in))
	for _, p := range in {
		out = append(out, panelapi.QueryParam{Key: p.Key, Value: p.Value})
	}
	return out
}

// cacheXMLTV downloads a target's upstream XMLTV document once at boot
// to targetDir/xmltv.xml, the file handleXMLTV reads from on every
// request (spec §4.7's EPG rewriter works off a cached copy rather than
// fetching the upstream per-request).
func cacheXMLTV(client *http.Client, url, targetDir string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	path := filepath.Join(targetDir, "xmltv.xml")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

// ingestInput fetches one input's playlist (M3U or Xtream) into
// PlaylistItems, the first step of the data-flow sentence before virtual
// IDs are assigned and the catalog store is updated.
func ingestInput(sc *config.SourcesConfig, inputName string, client *http.Client) ([]model.PlaylistItem, error) {
	for _, in := range sc.Inputs {
		if in.Name != inputName {
			continue
		}
		switch in.Type {
		case "xtream":
			return ingest.FetchXtreamCatalog(context.Background(), in.XtreamBaseURL, in.Username, in.Password, in.XtreamExt, in.Name, client)
		default:
			return ingest.FetchM3U(in.M3UURL, in.Name, client)
		}
	}
	return nil, nil
}

// ingestLocalVOD scans a configured local library, serving it over a
// loopback HTTP file server so it flows through the same media path as
// any remote input. The returned cleanup funcs stop the file server
// (and unmount the FUSE tree, when mounted) on process shutdown.
func ingestLocalVOD(lv config.LocalVODSource, inputName string, logger zerolog.Logger) ([]model.PlaylistItem, []func(), error) {
	baseURL, shutdownServer, err := localvod.Serve(context.Background(), lv.RootDir)
	if err != nil {
		return nil, nil, err
	}
	cleanups := []func(){shutdownServer}

	items, err := localvod.WalkLibrary(inputName, lv.RootDir, baseURL)
	if err != nil {
		return nil, cleanups, err
	}
	if lv.MountPoint != "" {
		if unmount, err := localvod.Mount(lv.RootDir, lv.MountPoint); err != nil {
			logger.Debug().Err(err).Msg("ipxyd: local vod fuse mount unavailable")
		} else {
			cleanups = append(cleanups, func() { unmount() })
		}
	}
	return items, cleanups, nil
}

// assignVirtualIDsAndStore runs every ingested item through the virtual
// ID allocator (spec §4.8) before writing it into the target's catalog,
// so every client-facing ID is stable across restarts.
func assignVirtualIDsAndStore(vidAllocator *virtualid.Allocator, store *dispatch.TargetStore, items []model.PlaylistItem) error {
	now := time.Now().Unix()
	for i := range items {
		vid, err := vidAllocator.AssignVirtualID(items[i].UUID, items[i].ProviderID, items[i].Kind, 0, now)
		if err != nil {
			return err
		}
		items[i].VirtualID = vid
	}
	return store.UpsertItems(items)
}
