package dash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mpdFixture = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <Period>
    <AdaptationSet audioTrackId="en_dialog_0" lang="en">
      <Representation width="0" bandwidth="128000">
        <BaseURL>stream_audio_en_1.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
    <AdaptationSet audioTrackId="pt_dialog_0" lang="pt">
      <Representation bandwidth="128000">
        <BaseURL>stream_audio_pt_1.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
    <AdaptationSet>
      <Representation width="1280" bandwidth="2000000">
        <BaseURL>stream_video_720.mp4</BaseURL>
      </Representation>
      <Representation width="1920" bandwidth="6000000">
        <BaseURL>stream_video_1080.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

func TestParseClassifiesBySubstring(t *testing.T) {
	m, err := Parse(mpdFixture)
	require.NoError(t, err)
	require.Len(t, m.Representations, 4)

	assert.True(t, m.Representations[0].IsAudio)
	assert.False(t, m.Representations[0].IsVideo)
	assert.True(t, m.Representations[2].IsVideo)
}

func TestParseClassifiesByContentType(t *testing.T) {
	const doc = `<MPD><Period>
      <AdaptationSet contentType="video">
        <Representation width="1920"><BaseURL>opaque_1.mp4</BaseURL></Representation>
      </AdaptationSet>
      <AdaptationSet mimeType="audio/mp4" audioTrackId="en_0">
        <Representation><BaseURL>opaque_2.mp4</BaseURL></Representation>
      </AdaptationSet>
    </Period></MPD>`
	m, err := Parse(doc)
	require.NoError(t, err)
	assert.True(t, m.Representations[0].IsVideo)
	assert.True(t, m.Representations[1].IsAudio)
}

func TestSelectVideoMaxWidth(t *testing.T) {
	m, err := Parse(mpdFixture)
	require.NoError(t, err)
	v, err := m.SelectVideo()
	require.NoError(t, err)
	assert.Equal(t, 1920, v.Width)
	assert.Equal(t, "stream_video_1080.mp4", v.BaseURL)
}

func TestSelectAudio(t *testing.T) {
	m, err := Parse(mpdFixture)
	require.NoError(t, err)

	a, err := m.SelectAudio("pt_dialog_0", "pt-BR")
	require.NoError(t, err)
	assert.Equal(t, "stream_audio_pt_1.mp4", a.BaseURL)

	// Unknown track id falls back to language, then to the first track.
	a, err = m.SelectAudio("missing", "pt-BR")
	require.NoError(t, err)
	assert.Equal(t, "stream_audio_pt_1.mp4", a.BaseURL)

	a, err = m.SelectAudio("missing", "ja")
	require.NoError(t, err)
	assert.Equal(t, "stream_audio_en_1.mp4", a.BaseURL)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(`<MPD></MPD>`)
	assert.Error(t, err)
}
