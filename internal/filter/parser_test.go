package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ipxyd/ipxyd/internal/model"
)

func sampleItem() Item {
	return Item{Name: "BBC One HD", Title: "BBC One", Group: "UK", URL: "http://x/1", Input: "main", Kind: model.KindLive}
}

func TestParseFieldComparisonMatches(t *testing.T) {
	expr, err := Parse(`title ~ "^BBC"`)
	require.NoError(t, err)
	require.True(t, expr.Eval(sampleItem()))
}

func TestParseFieldComparisonNoMatch(t *testing.T) {
	expr, err := Parse(`title ~ "^ITV"`)
	require.NoError(t, err)
	require.False(t, expr.Eval(sampleItem()))
}

func TestParseTypeComparison(t *testing.T) {
	expr, err := Parse(`type=live`)
	require.NoError(t, err)
	require.True(t, expr.Eval(sampleItem()))

	expr, err = Parse(`type=vod`)
	require.NoError(t, err)
	require.False(t, expr.Eval(sampleItem()))
}

func TestParseAndOr(t *testing.T) {
	expr, err := Parse(`type=live and group ~ "UK"`)
	require.NoError(t, err)
	require.True(t, expr.Eval(sampleItem()))

	expr, err = Parse(`type=vod or group ~ "UK"`)
	require.NoError(t, err)
	require.True(t, expr.Eval(sampleItem()))
}

func TestParseNotAndParens(t *testing.T) {
	expr, err := Parse(`not (type=vod and group ~ "US")`)
	require.NoError(t, err)
	require.True(t, expr.Eval(sampleItem()))
}

func TestParseCaptionMatchesTitleOrName(t *testing.T) {
	expr, err := Parse(`caption ~ "HD"`)
	require.NoError(t, err)
	require.True(t, expr.Eval(sampleItem())) // matches Name, not Title

	expr, err = Parse(`caption ~ "^BBC One$"`)
	require.NoError(t, err)
	require.True(t, expr.Eval(sampleItem())) // matches Title
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse(`bogus ~ "x"`)
	require.Error(t, err)
}

func TestParseRejectsMalformedExpression(t *testing.T) {
	_, err := Parse(`title ~`)
	require.Error(t, err)

	_, err = Parse(`(title ~ "x"`)
	require.Error(t, err)
}
