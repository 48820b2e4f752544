package dispatch

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ipxyd/ipxyd/internal/model"
)

// scanState is the HDHomeRun lineup-scan synthetic state machine (spec
// §4.10: "a synthetic scan state machine (progress counter incremented
// 20 per poll until 100, then latched; start/abort controlled by a POST
// endpoint)").
type scanState struct {
	mu       sync.Mutex
	running  bool
	progress int
}

func (s *scanState) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.progress = 0
}

func (s *scanState) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.progress = 0
}

// poll advances progress by 20 on every observation while a scan is
// running, latching at 100 rather than wrapping, matching "incremented
// 20 per poll until 100, then latched".
func (s *scanState) poll() (running bool, progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false, s.progress
	}
	if s.progress < 100 {
		s.progress += 20
		if s.progress > 100 {
			s.progress = 100
		}
	}
	if s.progress >= 100 {
		s.running = false
	}
	return s.progress < 100, s.progress
}

// hdhrTarget pairs one target's scan state with its service lookup key.
type hdhrTarget struct {
	scan scanState
}

func (s *Service) hdhrTargetState(name string) *hdhrTarget {
	s.hdhrMu.Lock()
	defer s.hdhrMu.Unlock()
	if s.hdhrStates == nil {
		s.hdhrStates = make(map[string]*hdhrTarget)
	}
	t, ok := s.hdhrStates[name]
	if !ok {
		t = &hdhrTarget{}
		s.hdhrStates[name] = t
	}
	return t
}

func (s *Service) handleDiscover(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	base := strings.TrimRight(s.BaseURL, "/") + "/" + targetName
	out := map[string]interface{}{
		"FriendlyName": "ipxyd " + targetName,
		"BaseURL":      base,
		"LineupURL":    base + "/lineup.json",
		"TunerCount":   2,
		"DeviceID":     "ipxyd-" + targetName,
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleDeviceXML(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	base := strings.TrimRight(s.BaseURL, "/") + "/" + targetName
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <URLBase>%s</URLBase>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>ipxyd %s</friendlyName>
    <manufacturer>Silicondust</manufacturer>
    <modelName>HDTC-2US</modelName>
    <UDN>uuid:ipxyd-%s</UDN>
  </device>
</root>`, base, targetName, targetName)
}

func (s *Service) handleLineupStatus(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	st := s.hdhrTargetState(targetName)
	running, progress := st.scan.poll()
	out := map[string]interface{}{
		"ScanInProgress": boolToInt(running),
		"ScanPossible":   1,
	}
	if running || progress > 0 {
		out["Progress"] = progress
		out["Found"] = progress / 20
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleLineupPost(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	st := s.hdhrTargetState(targetName)
	switch r.URL.Query().Get("scan") {
	case "start":
		st.scan.start()
	case "abort":
		st.scan.abort()
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "scan must be start or abort")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Service) handleLineup(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "target")
	target, ok := s.target(targetName)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown target")
		return
	}
	items, err := target.Catalog.Streams(model.ClusterLive, "")
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_error", err.Error())
		return
	}
	base := strings.TrimRight(s.BaseURL, "/") + "/" + targetName
	out := make([]map[string]string, 0, len(items))
	for i, it := range items {
		guideNumber := it.EPGChannelID
		if guideNumber == "" {
			guideNumber = fmt.Sprintf("%d", i+1)
		}
		out = append(out, map[string]string{
			"GuideNumber": guideNumber,
			"GuideName":   it.Name,
			"URL":         fmt.Sprintf("%s/hdhr-stream/%d", base, it.VirtualID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
