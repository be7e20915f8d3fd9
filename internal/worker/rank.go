package worker

import (
	"sort"

	"trailfetch/internal/langtag"
)

// bestServiceResult ranks usable service results by trailer count and picks
// a winner by cascading language preference: results where every trailer
// matches the requested language on both subtitle and audio win outright,
// then every-trailer audio matches, then every-trailer subtitle matches,
// then any-trailer audio, then any-trailer subtitle, then simply the
// highest-ranked result. Exact matches are rare in practice, so each rung is
// a graceful degradation of the one above.
func bestServiceResult(results []*serviceResult, lang string) *serviceResult {
	ranked := make([]*serviceResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].candidates) > len(ranked[j].candidates)
	})

	rungs := []func(*serviceResult) bool{
		func(r *serviceResult) bool {
			return every(r, func(c candidate) bool {
				return hasSubtitleMatch(c, lang) && hasAudioMatch(c, lang)
			})
		},
		func(r *serviceResult) bool { return every(r, func(c candidate) bool { return hasAudioMatch(c, lang) }) },
		func(r *serviceResult) bool { return every(r, func(c candidate) bool { return hasSubtitleMatch(c, lang) }) },
		func(r *serviceResult) bool { return some(r, func(c candidate) bool { return hasAudioMatch(c, lang) }) },
		func(r *serviceResult) bool { return some(r, func(c candidate) bool { return hasSubtitleMatch(c, lang) }) },
	}

	for _, rung := range rungs {
		for _, r := range ranked {
			if rung(r) {
				return r
			}
		}
	}
	return ranked[0]
}

func every(r *serviceResult, pred func(candidate) bool) bool {
	for _, c := range r.candidates {
		if !pred(c) {
			return false
		}
	}
	return len(r.candidates) > 0
}

func some(r *serviceResult, pred func(candidate) bool) bool {
	for _, c := range r.candidates {
		if pred(c) {
			return true
		}
	}
	return false
}

func hasAudioMatch(c candidate, lang string) bool {
	for _, l := range c.audioLangs {
		if langtag.Match(l, lang) {
			return true
		}
	}
	return false
}

func hasSubtitleMatch(c candidate, lang string) bool {
	for _, sub := range c.Subtitles {
		if langtag.Match(sub.Language, lang) {
			return true
		}
	}
	return false
}
