package hls

import (
	"errors"
	"regexp"
)

// avc1Codec matches H.264 codec signatures. HEVC and other codecs are
// excluded on purpose: the remux pipeline only carries SDR H.264 variants.
var avc1Codec = regexp.MustCompile(`avc1\.[\dA-Fa-f]+`)

// ErrNoEligibleVariant is returned when no variant survives the SDR/H.264
// filter.
var ErrNoEligibleVariant = errors.New("hls: no eligible variant")

// Eligible reports whether a variant may be downloaded: dynamic range must
// be exactly SDR and the codec string must carry an avc1 signature.
func Eligible(v Variant) bool {
	return v.VideoRange == "SDR" && avc1Codec.MatchString(v.Codecs)
}

// SelectVariant picks the variant to download. Among eligible variants it
// prefers widths of at least 1900 with the highest bandwidth breaking ties;
// when nothing reaches that width it falls back to the widest variant.
func SelectVariant(variants []Variant) (Variant, error) {
	var eligible []Variant
	for _, v := range variants {
		if Eligible(v) {
			eligible = append(eligible, v)
		}
	}
	if len(eligible) == 0 {
		return Variant{}, ErrNoEligibleVariant
	}

	var best *Variant
	for i := range eligible {
		v := &eligible[i]
		if v.Width < 1900 {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best != nil {
		return *best, nil
	}

	widest := eligible[0]
	for _, v := range eligible[1:] {
		if v.Width > widest.Width || (v.Width == widest.Width && v.Bandwidth > widest.Bandwidth) {
			widest = v
		}
	}
	return widest, nil
}
