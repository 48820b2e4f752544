package ingest

import (
	"strings"
	"testing"

	"github.com/ipxyd/ipxyd/internal/model"
)

const sampleM3U = `#EXTM3U
#EXTINF:-1 tvg-id="bbc1.uk" group-title="News",BBC One
http://upstream/live/1
#EXTINF:-1 group-title="Movies",Some Film (2019)
http://upstream/vod/2
#EXTINF:-1 group-title="Shows",Some Show S02E05
http://upstream/series/3
`

func TestParseM3U_classifiesEntries(t *testing.T) {
	items, err := ParseM3U(strings.NewReader(sampleM3U), "myinput")
	if err != nil {
		t.Fatalf("ParseM3U: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("want 3 items, got %d", len(items))
	}

	live, movie, series := items[0], items[1], items[2]

	if live.Kind != model.KindLive || live.Cluster != model.ClusterLive {
		t.Errorf("entry 0: want live, got kind=%v cluster=%v", live.Kind, live.Cluster)
	}
	if live.EPGChannelID != "bbc1.uk" {
		t.Errorf("entry 0: want tvg-id bbc1.uk, got %q", live.EPGChannelID)
	}
	if live.Group != "News" {
		t.Errorf("entry 0: want group News, got %q", live.Group)
	}

	if movie.Kind != model.KindVideo || movie.Cluster != model.ClusterVideo {
		t.Errorf("entry 1: want video, got kind=%v cluster=%v", movie.Kind, movie.Cluster)
	}
	if movie.Title != "Some Film (2019)" {
		t.Errorf("entry 1: want title preserved, got %q", movie.Title)
	}

	if series.Kind != model.KindSeries || series.Cluster != model.ClusterSeries {
		t.Errorf("entry 2: want series, got kind=%v cluster=%v", series.Kind, series.Cluster)
	}
	if series.Name != "Some Show" {
		t.Errorf("entry 2: want show name 'Some Show', got %q", series.Name)
	}
	if series.Title != "Some Show S02E05" {
		t.Errorf("entry 2: want title 'Some Show S02E05', got %q", series.Title)
	}
}

func TestParseM3U_contentUUIDStable(t *testing.T) {
	a, err := ParseM3U(strings.NewReader(sampleM3U), "myinput")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseM3U(strings.NewReader(sampleM3U), "myinput")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].UUID != b[i].UUID {
			t.Errorf("entry %d: UUID not stable across re-ingest", i)
		}
	}
}
