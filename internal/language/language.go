package language

import (
	"strings"

	"golang.org/x/text/language"
)

type entry struct {
	code2     string // ISO 639-1 (2-letter)
	tesseract string // tesseract traineddata code (ISO 639-2/T mostly)
	display   string
}

var languages = []entry{
	{"en", "eng", "English"},
	{"es", "spa", "Spanish"},
	{"fr", "fra", "French"},
	{"de", "deu", "German"},
	{"it", "ita", "Italian"},
	{"pt", "por", "Portuguese"},
	{"ja", "jpn", "Japanese"},
	{"ko", "kor", "Korean"},
	{"zh", "chi_sim", "Chinese"},
	{"ru", "rus", "Russian"},
	{"ar", "ara", "Arabic"},
	{"hi", "hin", "Hindi"},
	{"nl", "nld", "Dutch"},
	{"pl", "pol", "Polish"},
	{"sv", "swe", "Swedish"},
	{"da", "dan", "Danish"},
	{"no", "nor", "Norwegian"},
	{"fi", "fin", "Finnish"},
	{"tr", "tur", "Turkish"},
	{"uk", "ukr", "Ukrainian"},
	{"cs", "ces", "Czech"},
	{"el", "ell", "Greek"},
	{"he", "heb", "Hebrew"},
}

var (
	byCode2     map[string]*entry
	byTesseract map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byTesseract = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byTesseract[e.tesseract] = e
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byTesseract[code]; ok {
		return e
	}
	// BCP 47 parsing collapses region and script subtags ("en-US",
	// "zh-Hans") onto a base language.
	if tag, err := language.Parse(code); err == nil {
		if base, conf := tag.Base(); conf >= language.High {
			if e, ok := byCode2[base.String()]; ok {
				return e
			}
		}
	}
	return nil
}

// IsValidCode reports whether the given value resolves to a recognized
// recognition language.
func IsValidCode(code string) bool {
	return lookup(code) != nil
}

// TesseractCode converts a recognized language code to the tesseract
// traineddata identifier. Unrecognized 3-letter codes pass through so users
// with extra traineddata files are not blocked.
func TesseractCode(code string) string {
	if e := lookup(code); e != nil {
		return e.tesseract
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) == 3 {
		return code
	}
	return ""
}

// CombinedTesseract builds the "eng+deu" style language argument for a single
// combined recognition pass over all requested languages.
func CombinedTesseract(codes []string) string {
	combined := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		mapped := TesseractCode(code)
		if mapped == "" {
			continue
		}
		if _, ok := seen[mapped]; ok {
			continue
		}
		seen[mapped] = struct{}{}
		combined = append(combined, mapped)
	}
	return strings.Join(combined, "+")
}

// DisplayName returns a human-readable language name for any recognized code.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeList deduplicates and normalizes a list of language codes to
// ISO 639-1, dropping anything unrecognized.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		e := lookup(code)
		if e == nil {
			continue
		}
		if _, ok := seen[e.code2]; ok {
			continue
		}
		seen[e.code2] = struct{}{}
		normalized = append(normalized, e.code2)
	}
	return normalized
}
