package ingest

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ipxyd/ipxyd/internal/httpclient"
	"github.com/ipxyd/ipxyd/internal/model"
)

const maxLineSize = 1 << 20 // 1 MiB per line

// m3uEntry is one #EXTINF/url pair lifted from the playlist before it is
// classified into a PlaylistItem.
type m3uEntry struct {
	extinf string
	url    string
}

// FetchM3U retrieves m3uURL and parses it into PlaylistItems tagged with
// inputName. If client is nil, httpclient.Default() is used.
func FetchM3U(m3uURL, inputName string, client *http.Client) ([]model.PlaylistItem, error) {
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequest(http.MethodGet, m3uURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ipxyd/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errStatusCode(resp.StatusCode)
	}
	return ParseM3U(resp.Body, inputName)
}

// ParseM3U reads an M3U document in a streaming fashion and classifies
// each entry into a Live, Video, or Series PlaylistItem.
func ParseM3U(r io.Reader, inputName string) ([]model.PlaylistItem, error) {
	entries, err := scanM3UEntries(r)
	if err != nil {
		return nil, err
	}
	items := make([]model.PlaylistItem, 0, len(entries))
	var ordinal uint64
	for _, e := range entries {
		items = append(items, classifyEntry(e, inputName, ordinal))
		ordinal++
	}
	return items, nil
}

func scanM3UEntries(r io.Reader) ([]m3uEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	var entries []m3uEntry
	var extinf string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			extinf = line
			continue
		}
		if extinf != "" && (strings.HasPrefix(line, "http") || strings.HasPrefix(line, "/")) {
			entries = append(entries, m3uEntry{extinf: extinf, url: line})
			extinf = ""
			continue
		}
		extinf = ""
	}
	return entries, sc.Err()
}

func classifyEntry(e m3uEntry, inputName string, ordinal uint64) model.PlaylistItem {
	title := extinfTitle(e.extinf)
	name, year := parseTitleYear(title)
	show, season, episode := parseShowSeasonEpisode(e.extinf)
	group := m3uAttr(e.extinf, "group-title")
	tvgID := m3uAttr(e.extinf, "tvg-id")
	providerID := uint32(fnv32(e.url))

	var kind model.ItemKind
	switch {
	case show != "" && season > 0 && episode > 0:
		kind = model.KindSeries
		name = show
		title = show + " S" + pad2(season) + "E" + pad2(episode)
	case year > 0 || strings.Contains(strings.ToLower(e.extinf), "movie"):
		kind = model.KindVideo
	default:
		kind = model.KindLive
	}
	if group == "" {
		group = name
	}

	item := model.PlaylistItem{
		ProviderID:    providerID,
		Kind:          kind,
		Cluster:       model.ClusterOf(kind),
		Name:          name,
		Title:         title,
		Group:         group,
		URL:           e.url,
		EPGChannelID:  tvgID,
		InputName:     inputName,
		SourceOrdinal: ordinal,
	}
	item.UUID = model.ContentUUID(inputName, providerID, kind, e.url)
	return item
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func extinfTitle(extinf string) string {
	if i := strings.Index(extinf, ","); i >= 0 {
		return strings.TrimSpace(extinf[i+1:])
	}
	return extinf
}

func parseTitleYear(s string) (title string, year int) {
	s = strings.TrimSpace(s)
	if len(s) < 6 || s[len(s)-1] != ')' {
		return s, 0
	}
	i := strings.LastIndex(s, "(")
	if i < 0 {
		return s, 0
	}
	y := strings.TrimSpace(s[i+1 : len(s)-1])
	if len(y) != 4 {
		return s, 0
	}
	n, err := strconv.Atoi(y)
	if err != nil || n < 1900 || n > 2100 {
		return s, 0
	}
	return strings.TrimSpace(s[:i]), n
}

// parseShowSeasonEpisode extracts a "SxxEyy" marker and the show name,
// the EXTINF title text that precedes the marker, used to group the
// entry under a series rather than treat it as a standalone video or
// live channel.
func parseShowSeasonEpisode(extinf string) (show string, season, episode int) {
	lower := strings.ToLower(extinf)
	idx := strings.Index(lower, "s")
	for idx >= 0 && idx+5 < len(extinf) {
		if isDigit(extinf[idx+1]) && isDigit(extinf[idx+2]) &&
			(extinf[idx+3] == 'e' || extinf[idx+3] == 'E') &&
			isDigit(extinf[idx+4]) && isDigit(extinf[idx+5]) {
			season = int(extinf[idx+1]-'0')*10 + int(extinf[idx+2]-'0')
			episode = int(extinf[idx+4]-'0')*10 + int(extinf[idx+5]-'0')
			break
		}
		next := strings.Index(lower[idx+1:], "s")
		if next < 0 {
			idx = -1
			break
		}
		idx += next + 1
	}
	if season > 0 && episode > 0 {
		if c := strings.Index(extinf, ","); c >= 0 && c < idx {
			show = strings.TrimSpace(extinf[c+1 : idx])
		}
	}
	return show, season, episode
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// m3uAttr extracts a `key="value"` attribute from an EXTINF line.
func m3uAttr(extinf, key string) string {
	prefix := key + `="`
	i := strings.Index(extinf, prefix)
	if i < 0 {
		return ""
	}
	i += len(prefix)
	j := strings.Index(extinf[i:], `"`)
	if j < 0 {
		return ""
	}
	return extinf[i : i+j]
}

func fnv32(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return "ingest: unexpected m3u status " + strconv.Itoa(int(e))
}
