package ocr

import (
	"golang.org/x/text/language"
)

// tesseractLanguages maps BCP 47 codes to the ISO 639-3 names Tesseract uses
// for its traineddata files ("es" -> "spa").
func tesseractLanguages(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		iso3 := base.ISO3()
		if iso3 == "" || seen[iso3] {
			continue
		}
		seen[iso3] = true
		out = append(out, iso3)
	}
	if len(out) == 0 {
		out = append(out, "eng")
	}
	return out
}
