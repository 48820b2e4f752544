package bouquet

import (
	"testing"

	"github.com/ipxyd/ipxyd/internal/model"
	"github.com/stretchr/testify/require"
)

func TestAllowsUnrestrictedWhenEmpty(t *testing.T) {
	b := &Bouquet{}
	require.True(t, b.Allows(model.ClusterLive, "news"))
}

func TestAllowsRestrictsToWhitelist(t *testing.T) {
	b := &Bouquet{Live: []string{"news", "sports"}}
	require.True(t, b.Allows(model.ClusterLive, "sports"))
	require.False(t, b.Allows(model.ClusterLive, "movies"))
	require.True(t, b.Allows(model.ClusterVideo, "anything")) // vod list empty => unrestricted
}

func TestNilBouquetAllowsEverything(t *testing.T) {
	var b *Bouquet
	require.True(t, b.Allows(model.ClusterSeries, "drama"))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := &Bouquet{Live: []string{"news"}, Series: []string{"drama", "comedy"}}
	require.NoError(t, Save(dir, "alice", b))

	got, err := Load(dir, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"news"}, got.Live)
	require.Empty(t, got.VOD)
	require.Equal(t, []string{"drama", "comedy"}, got.Series)
}

func TestLoadMissingFilesIsUnrestricted(t *testing.T) {
	dir := t.TempDir()
	got, err := Load(dir, "nobody")
	require.NoError(t, err)
	require.True(t, got.Allows(model.ClusterLive, "anything"))
}
