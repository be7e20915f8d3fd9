package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trailfetch/services"
)

func result(name string, candidates ...candidate) *serviceResult {
	return &serviceResult{name: name, trailerPage: "https://page/" + name, candidates: candidates}
}

func cand(audioLangs []string, subtitleLangs ...string) candidate {
	c := candidate{audioLangs: audioLangs}
	for _, lang := range subtitleLangs {
		c.Subtitles = append(c.Subtitles, services.SubtitleFile{Language: lang})
	}
	return c
}

func TestBestServiceResultPrefersFullMatch(t *testing.T) {
	audioOnly := result("AUDIO_ONLY", cand([]string{"por"}))
	full := result("FULL", cand([]string{"por"}, "pt-BR"))

	got := bestServiceResult([]*serviceResult{audioOnly, full}, "pt-BR")
	assert.Equal(t, "FULL", got.name)
}

func TestBestServiceResultEveryBeatsAny(t *testing.T) {
	// one of two trailers matches by audio
	partial := result("PARTIAL", cand([]string{"eng"}), cand([]string{"por"}))
	// single trailer, audio matches
	consistent := result("CONSISTENT", cand([]string{"por"}))

	got := bestServiceResult([]*serviceResult{partial, consistent}, "pt")
	assert.Equal(t, "CONSISTENT", got.name)
}

func TestBestServiceResultSubtitleRungs(t *testing.T) {
	subsOnly := result("SUBS", cand([]string{"eng"}, "pt-BR"))
	nothing := result("NONE", cand([]string{"eng"}))

	got := bestServiceResult([]*serviceResult{nothing, subsOnly}, "pt")
	assert.Equal(t, "SUBS", got.name)
}

func TestBestServiceResultFallsBackToMostTrailers(t *testing.T) {
	one := result("ONE", cand([]string{"eng"}))
	two := result("TWO", cand([]string{"eng"}), cand([]string{"fre"}))

	got := bestServiceResult([]*serviceResult{one, two}, "ja")
	assert.Equal(t, "TWO", got.name)
}

func TestFilterUsable(t *testing.T) {
	ok := result("OK", cand([]string{"eng"}))
	noPage := &serviceResult{name: "NO_PAGE", candidates: []candidate{cand([]string{"eng"})}}
	noTrailers := result("EMPTY")
	silent := result("SILENT", cand(nil))
	failed := result("FAILED", cand([]string{"eng"}))
	failed.err = services.ErrNoTrailers

	got := filterUsable([]*serviceResult{ok, noPage, noTrailers, silent, failed})
	assert.Len(t, got, 1)
	assert.Equal(t, "OK", got[0].name)
}
