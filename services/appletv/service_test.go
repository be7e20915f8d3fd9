package appletv

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailfetch/internal/hls"
)

func TestInjectRegion(t *testing.T) {
	tests := []struct {
		name string
		url  string
		region string
		want string
	}{
		{
			name: "default region",
			url:  "https://tv.apple.com/movie/heat/umc.cmc.abc",
			region: "",
			want: "https://tv.apple.com/movie/heat/us/umc.cmc.abc",
		},
		{
			name: "explicit region",
			url:  "https://tv.apple.com/movie/heat/umc.cmc.abc",
			region: "br",
			want: "https://tv.apple.com/movie/heat/br/umc.cmc.abc",
		},
		{
			name: "already injected",
			url:  "https://tv.apple.com/movie/heat/us/umc.cmc.abc",
			region: "us",
			want: "https://tv.apple.com/movie/heat/us/umc.cmc.abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, injectRegion(tt.url, tt.region))
		})
	}
}

func TestSelectAudioRenditions(t *testing.T) {
	renditions := []hls.Rendition{
		{Language: "en-US", URI: "audio/en.m3u8"},
		{Language: "pt-BR", URI: "audio/pt.m3u8"},
		{Language: "fr-FR", URI: "audio/fr.m3u8"},
		{Language: "pt-BR", URI: "audio/pt-dup.m3u8"},
	}

	got := selectAudioRenditions(renditions, "pt", false)
	require.Len(t, got, 1)
	assert.Equal(t, "audio/pt.m3u8", got[0].URI)

	got = selectAudioRenditions(renditions, "ja", false)
	require.Len(t, got, 1)
	assert.Equal(t, "en-US", got[0].Language)

	got = selectAudioRenditions(renditions, "pt", true)
	assert.Len(t, got, 3)
}

func TestSelectAudioRenditionsSkipsAudioDescription(t *testing.T) {
	renditions := []hls.Rendition{
		{Language: "en-US", URI: "audio/en-ad.m3u8", Characteristics: []string{"public.accessibility.describes-video"}},
		{Language: "en-US", URI: "audio/en.m3u8"},
		{Language: "fr-FR", URI: "audio/fr-ad.m3u8", Characteristics: []string{"public.accessibility.describes-video"}},
	}

	// The AD track precedes the main one for the requested language and must
	// not win the single-track pick.
	got := selectAudioRenditions(renditions, "en", false)
	require.Len(t, got, 1)
	assert.Equal(t, "audio/en.m3u8", got[0].URI)

	// Nor may it ride along in a full-track mux.
	got = selectAudioRenditions(renditions, "en", true)
	require.Len(t, got, 1)
	assert.Equal(t, "audio/en.m3u8", got[0].URI)
}

func TestMergeVTT(t *testing.T) {
	parts := []string{
		"WEBVTT\nX-TIMESTAMP-MAP=MPEGTS:0,LOCAL:00:00:00.000\n\n00:00:01.000 --> 00:00:02.000\nfirst cue\n",
		"WEBVTT\n\n00:00:03.000 --> 00:00:04.000\nsecond cue\n",
		"WEBVTT\n",
	}

	got := mergeVTT(parts)
	want := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nfirst cue\n\n00:00:03.000 --> 00:00:04.000\nsecond cue\n"
	assert.Equal(t, want, got)
}

func TestUnmarshalMaybeString(t *testing.T) {
	type payload struct {
		Value string `json:"value"`
	}

	var direct payload
	require.NoError(t, unmarshalMaybeString(json.RawMessage(`{"value":"a"}`), &direct))
	assert.Equal(t, "a", direct.Value)

	var nested payload
	require.NoError(t, unmarshalMaybeString(json.RawMessage(`"{\"value\":\"b\"}"`), &nested))
	assert.Equal(t, "b", nested.Value)
}

func TestExtractTrailersShelf(t *testing.T) {
	shoebox := map[string]any{
		"uts-api-cache-umc.cmc.abc": map[string]any{
			"canvas": map[string]any{
				"shelves": []any{
					map[string]any{"id": "uts.col.Related", "items": []any{}},
					map[string]any{
						"id": "uts.col.Trailers",
						"items": []any{
							map[string]any{
								"title": "Official Trailer",
								"playables": []any{
									map[string]any{"assets": map[string]any{"hlsUrl": "https://cdn/master.m3u8"}},
								},
							},
						},
					},
				},
			},
		},
	}
	raw, err := json.Marshal(shoebox)
	require.NoError(t, err)

	var entries map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &entries))

	var data shoeboxCanvas
	require.NoError(t, unmarshalMaybeString(entries["uts-api-cache-umc.cmc.abc"], &data))
	require.Len(t, data.Canvas.Shelves, 2)
	assert.Equal(t, "Official Trailer", data.Canvas.Shelves[1].Items[0].Title)
	assert.Equal(t, "https://cdn/master.m3u8", data.Canvas.Shelves[1].Items[0].Playables[0].Assets.HLSURL)
}
