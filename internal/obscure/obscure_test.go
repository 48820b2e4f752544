package obscure

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObscureRevealRoundTrips(t *testing.T) {
	codec, err := NewCodec([]byte("test-secret"))
	require.NoError(t, err)

	token, err := codec.Obscure("http://upstream.example/icon.png")
	require.NoError(t, err)
	require.NotContains(t, token, "upstream.example")

	revealed, err := codec.Reveal(token)
	require.NoError(t, err)
	require.Equal(t, "http://upstream.example/icon.png", revealed)
}

func TestObscureProducesURLSafeTokens(t *testing.T) {
	codec, err := NewCodec([]byte("test-secret"))
	require.NoError(t, err)

	token, err := codec.Obscure("http://upstream.example/a?b=c&d=e")
	require.NoError(t, err)
	require.NotContains(t, token, "/")
	require.NotContains(t, token, "+")
	require.NotContains(t, token, "=")
}

func TestRevealRejectsGarbageToken(t *testing.T) {
	codec, err := NewCodec([]byte("test-secret"))
	require.NoError(t, err)

	_, err = codec.Reveal("not-a-real-token")
	require.Error(t, err)
}

func TestRevealRejectsTokenFromDifferentKey(t *testing.T) {
	codecA, err := NewCodec([]byte("key-a"))
	require.NoError(t, err)
	codecB, err := NewCodec([]byte("key-b"))
	require.NoError(t, err)

	token, err := codecA.Obscure("http://upstream.example/icon.png")
	require.NoError(t, err)

	_, err = codecB.Reveal(token)
	require.Error(t, err)
}

func TestNewCodecRejectsEmptyKey(t *testing.T) {
	_, err := NewCodec(nil)
	require.Error(t, err)
}
