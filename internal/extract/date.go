// Package extract contains the pure local heuristics that pull a purchase
// date and a store name out of noisy receipt OCR text. Both return the
// empty string on a miss; they never fail.
package extract

import (
	"regexp"
	"strconv"
	"time"

	"golang.org/x/text/width"
)

// Era epoch offsets: gregorian year = offset + era year.
// Reiwa 1 = 2019, Heisei 1 = 1989, Showa 1 = 1926.
var eraEpochs = map[string]int{
	"令和": 2018,
	"平成": 1988,
	"昭和": 1925,
}

var eraLetters = map[string]string{
	"R": "令和", "r": "令和",
	"H": "平成", "h": "平成",
	"S": "昭和", "s": "昭和",
}

var (
	reGregorian    = regexp.MustCompile(`(20\d{2}|19\d{2})[\-/\.](\d{1,2})[\-/\.](\d{1,2})`)
	reGregorianJP  = regexp.MustCompile(`(20\d{2}|19\d{2})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	reEraName      = regexp.MustCompile(`(令和|平成|昭和)\s*(\d{1,2})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	reEraCompact   = regexp.MustCompile(`([RrHhSs])(\d{1,2})[\./\-](\d{1,2})[\./\-](\d{1,2})`)
	reEraLetterJP  = regexp.MustCompile(`([RrHhSs])\s*(\d{1,2})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
)

// eraToGregorian converts an era year to a Gregorian year. Unknown eras
// yield 0, which never survives calendar validation.
func eraToGregorian(era string, year int) int {
	offset, ok := eraEpochs[era]
	if !ok {
		return 0
	}
	return offset + year
}

// isoDate validates (year, month, day) as a real calendar date and
// formats it as YYYY-MM-DD. Impossible combinations return "".
func isoDate(year, month, day int) string {
	if year < 1 {
		return ""
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return ""
	}
	return t.Format("2006-01-02")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// PurchaseDate extracts a purchase date from receipt OCR text and returns
// it as an ISO YYYY-MM-DD string, or "" when nothing matches. Supported
// notations: 2025/9/28, 2025-09-28, 2025年9月28日, 令和7年9月28日,
// R7.9.28, R7年9月28日. Each tier validates the constructed date; an
// invalid match falls through to the next tier.
func PurchaseDate(ocrText string) string {
	if ocrText == "" {
		return ""
	}
	// OCR often emits full-width digits and spaces; fold them to ASCII
	// before matching.
	text := width.Fold.String(ocrText)

	if m := reGregorian.FindStringSubmatch(text); m != nil {
		if iso := isoDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); iso != "" {
			return iso
		}
	}
	if m := reGregorianJP.FindStringSubmatch(text); m != nil {
		if iso := isoDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); iso != "" {
			return iso
		}
	}
	if m := reEraName.FindStringSubmatch(text); m != nil {
		y := eraToGregorian(m[1], atoi(m[2]))
		if iso := isoDate(y, atoi(m[3]), atoi(m[4])); iso != "" {
			return iso
		}
	}
	if m := reEraCompact.FindStringSubmatch(text); m != nil {
		y := eraToGregorian(eraLetters[m[1]], atoi(m[2]))
		if iso := isoDate(y, atoi(m[3]), atoi(m[4])); iso != "" {
			return iso
		}
	}
	if m := reEraLetterJP.FindStringSubmatch(text); m != nil {
		y := eraToGregorian(eraLetters[m[1]], atoi(m[2]))
		if iso := isoDate(y, atoi(m[3]), atoi(m[4])); iso != "" {
			return iso
		}
	}
	return ""
}
