package prompt

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	number    = `(\d+(?:,\d{3})*(?:\.\d+)?)`
	rangeSep  = `\s*(?:-|–|to|and)\s*`
	currency  = `(?:\$|usd|dollars?|bucks)`
	cueWords  = `(?:price|prices|between|range|budget|cost|spend)`
	gapNoDigs = `[^\d\n]{0,24}?`
)

var priceRes = []*regexp.Regexp{
	// "budget 200-500", "price range between 200 - 500 $", "between $200 and $500"
	regexp.MustCompile(`(?i)\b` + cueWords + gapNoDigs + `\$?\s*` + number + rangeSep + `\$?\s*` + number + `(?:\s*` + currency + `)?`),
	// "200 - 500 $", "200-500 usd"
	regexp.MustCompile(`(?i)\b` + number + `\s*(?:-|–)\s*` + number + `\s*` + currency),
	// "$200-$500"
	regexp.MustCompile(`(?i)\$\s*` + number + rangeSep + `\$\s*` + number),
}

// extractPriceRange returns the first range found, ordered low to high. No
// bound is inferred from a lone number.
func extractPriceRange(text string) (lo, hi *float64) {
	for _, re := range priceRes {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if looksLikeDate(text, loc) {
				continue
			}
			a, errA := parseAmount(text[loc[2]:loc[3]])
			b, errB := parseAmount(text[loc[4]:loc[5]])
			if errA != nil || errB != nil {
				continue
			}
			if a > b {
				a, b = b, a
			}
			return &a, &b
		}
	}
	return nil, nil
}

// looksLikeDate rejects matches that are part of a numeric date such as
// 12-24-2024.
func looksLikeDate(text string, loc []int) bool {
	start, end := loc[2], loc[5]
	if start > 0 && strings.ContainsRune("-/.", rune(text[start-1])) {
		return true
	}
	if end+1 < len(text) && strings.ContainsRune("-/.", rune(text[end])) && isDigit(text[end+1]) {
		return true
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
