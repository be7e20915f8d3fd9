package primevideo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTitleID(t *testing.T) {
	page := `<html><script type="text/template">{"props":{"state":{"pageTitleId":"amzn1.dv.gti.abc123"}}}</script></html>`

	id, err := extractTitleID(page)
	require.NoError(t, err)
	assert.Equal(t, "amzn1.dv.gti.abc123", id)

	_, err = extractTitleID(`<html><body>nothing here</body></html>`)
	assert.Error(t, err)
}

func TestSelectAudioTrack(t *testing.T) {
	tracks := []audioTrack{
		{AudioTrackID: "en_dialog", LanguageCode: "en-US"},
		{AudioTrackID: "pt_dialog", LanguageCode: "pt-BR"},
	}

	assert.Equal(t, "pt_dialog", selectAudioTrack(tracks, "pt").AudioTrackID)
	assert.Equal(t, "en_dialog", selectAudioTrack(tracks, "ja").AudioTrackID)
}

func TestSelectManifestURL(t *testing.T) {
	sets := map[string]urlSet{}

	sd := urlSet{}
	sd.URLs.Manifest.URL = "https://cdn/sd.mpd"
	sd.URLs.Manifest.VideoQuality = "SD"
	sd.URLs.Manifest.AudioTrackID = "pt_dialog"
	sets["sd"] = sd

	other := urlSet{}
	other.URLs.Manifest.URL = "https://cdn/other.mpd"
	other.URLs.Manifest.VideoQuality = "HD"
	other.URLs.Manifest.AudioTrackID = "fr_dialog"
	sets["other"] = other

	hd := urlSet{}
	hd.URLs.Manifest.URL = "https://cdn/hd.mpd"
	hd.URLs.Manifest.VideoQuality = "HD"
	hd.URLs.Manifest.AudioTrackID = "pt_dialog"
	sets["hd"] = hd

	url, err := selectManifestURL(sets, "pt_dialog")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/hd.mpd", url)

	wildcard := urlSet{}
	wildcard.URLs.Manifest.URL = "https://cdn/all.mpd"
	wildcard.URLs.Manifest.VideoQuality = "HD"
	wildcard.URLs.Manifest.AudioTrackID = "ALL"

	url, err = selectManifestURL(map[string]urlSet{"all": wildcard}, "pt_dialog")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/all.mpd", url)

	_, err = selectManifestURL(map[string]urlSet{"sd": sd}, "pt_dialog")
	assert.Error(t, err)
}
