package netflix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSupplementals(t *testing.T) {
	page := `<html><head><script>window.netflix = window.netflix || {};
netflix.reactContext = {"models":{"graphql":{"data":{
"Video:81223025":{"title":"The Movie","videoId":81223025},
"Supplemental:90000001":{"title":"Trailer: Am\x65lie","videoId":90000001},
"Supplemental:90000002":{"title":"Teaser","videoId":90000002},
"Supplemental:90000003":{"title":"Unreleased","videoId":null}
}}}};</script></head><body></body></html>`

	got, err := extractSupplementals(page)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[int64]string{}
	for _, s := range got {
		byID[s.VideoID] = s.Title
	}
	assert.Equal(t, "Trailer: Amelie", byID[90000001])
	assert.Equal(t, "Teaser", byID[90000002])
}

func TestExtractSupplementalsMissingScript(t *testing.T) {
	_, err := extractSupplementals(`<html><script>var other = 1;</script></html>`)
	assert.Error(t, err)
}

func TestSelectAudioStreams(t *testing.T) {
	tracks := []audioTrack{
		{Language: "en", Streams: []stream{{URLs: []streamURL{{URL: "https://cdn/en"}}}}},
		{Language: "pt-BR", Streams: []stream{{URLs: []streamURL{{URL: "https://cdn/pt"}}}}},
		{Language: "fr", Streams: nil},
	}

	got := selectAudioStreams(tracks, "pt", false)
	require.Len(t, got, 1)
	assert.Equal(t, "https://cdn/pt", got[0].URL)

	got = selectAudioStreams(tracks, "ja", false)
	require.Len(t, got, 1)
	assert.Equal(t, "en", got[0].Language)

	got = selectAudioStreams(tracks, "pt", true)
	assert.Len(t, got, 2)

	assert.Nil(t, selectAudioStreams([]audioTrack{{Language: "fr"}}, "fr", false))
}

func TestSelectVideoURL(t *testing.T) {
	tracks := []videoTrack{{Streams: []stream{
		{Bitrate: 1200, URLs: []streamURL{{URL: "https://cdn/low"}}},
		{Bitrate: 4800, URLs: []streamURL{{URL: "https://cdn/high"}}},
		{Bitrate: 2400, URLs: []streamURL{{URL: "https://cdn/mid"}}},
	}}}

	url, err := selectVideoURL(tracks)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/high", url)

	_, err = selectVideoURL(nil)
	assert.Error(t, err)
}
