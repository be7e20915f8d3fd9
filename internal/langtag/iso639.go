package langtag

// iso6392 maps ISO 639-1 two-letter codes to the ISO 639-2/B three-letter
// codes ffmpeg expects in stream language metadata. Only languages that
// appear on the supported streaming services need entries; an absent code
// simply leaves the stream untagged.
var iso6392 = map[string]string{
	"ar": "ara",
	"bg": "bul",
	"ca": "cat",
	"cs": "cze",
	"da": "dan",
	"de": "ger",
	"el": "gre",
	"en": "eng",
	"es": "spa",
	"et": "est",
	"eu": "baq",
	"fi": "fin",
	"fr": "fre",
	"gl": "glg",
	"he": "heb",
	"hi": "hin",
	"hr": "hrv",
	"hu": "hun",
	"id": "ind",
	"it": "ita",
	"ja": "jpn",
	"ko": "kor",
	"lt": "lit",
	"lv": "lav",
	"ms": "may",
	"nb": "nob",
	"nl": "dut",
	"no": "nor",
	"pl": "pol",
	"pt": "por",
	"ro": "rum",
	"ru": "rus",
	"sk": "slo",
	"sl": "slv",
	"sr": "srp",
	"sv": "swe",
	"ta": "tam",
	"te": "tel",
	"th": "tha",
	"tl": "tgl",
	"tr": "tur",
	"uk": "ukr",
	"vi": "vie",
	"zh": "chi",
}

// ISO6392 resolves a language tag to its ISO 639-2 code via the primary
// subtag. The second return is false when no mapping exists.
func ISO6392(tag string) (string, bool) {
	code, ok := iso6392[Primary(tag)]
	return code, ok
}
