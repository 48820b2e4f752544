package dispatch

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ipxyd/ipxyd/internal/allocator"
	"github.com/ipxyd/ipxyd/internal/credentials"
	"github.com/ipxyd/ipxyd/internal/epg"
	"github.com/ipxyd/ipxyd/internal/streaming"
	"github.com/ipxyd/ipxyd/internal/users"
)

// Target is one provisioned destination (spec §3 "Target"): the pairing
// of a catalog (C1/C8 backed TargetStore) with the provider lineup (C2)
// that serves its media, plus the input name credentials and the
// provisioner (C9) key this target maps back to.
type Target struct {
	Name      string
	Catalog   *TargetStore
	Lineup    *allocator.Lineup
	InputName string

	// EPGSourcePath is the on-disk cached upstream XMLTV document this
	// target's EPG rewriter (C7) reads from. Populated by the EPG
	// ingest job, outside this package's scope.
	EPGSourcePath string
	EPGShift      time.Duration
	EPGIcons      epg.IconObfuscator
	EPGIconBase   string
}

// Service holds every dependency the HTTP handlers need: the component
// wiring spelled out in the data-flow sentence "external HTTP request ->
// dispatcher -> user auth + bouquet filter -> catalog lookup -> [media:
// allocator + user manager + pipeline]".
type Service struct {
	UserStore   UserStore
	Users       *users.Manager
	BouquetDir  string
	Targets     map[string]*Target
	Credentials *credentials.Catalog

	Fetcher *streaming.Fetcher
	Shared  *streaming.SharedStreamManager

	BufferEnabled bool
	BufferSize    int
	ShareStream   bool

	BaseURL string

	Logger zerolog.Logger

	hdhrMu     sync.Mutex
	hdhrStates map[string]*hdhrTarget
}

// target looks up a provisioned destination by name.
func (s *Service) target(name string) (*Target, bool) {
	t, ok := s.Targets[name]
	return t, ok
}

// NewService wires the minimum required dependencies; Targets is left
// for the caller to populate via AddTarget once each TargetStore and
// Lineup has been opened.
func NewService(userStore UserStore, userMgr *users.Manager, fetcher *streaming.Fetcher, shared *streaming.SharedStreamManager, logger zerolog.Logger) *Service {
	return &Service{
		UserStore: userStore,
		Users:     userMgr,
		Targets:   make(map[string]*Target),
		Fetcher:   fetcher,
		Shared:    shared,
		Logger:    logger,
	}
}

// AddTarget registers a provisioned destination under the service.
func (s *Service) AddTarget(t *Target) {
	s.Targets[t.Name] = t
}
