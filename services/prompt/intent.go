package prompt

import (
	"regexp"
	"strconv"
	"strings"

	"travelagent/models"
)

var (
	cabinRe = regexp.MustCompile(`(?i)\b(premium[\s-]+economy|economy|coach|business\s+class|first\s+class|in\s+business|in\s+first)\b`)

	passengerRe = regexp.MustCompile(`(?i)\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine)\s+(?:adults?|passengers?|people|persons?|travell?ers?|tickets?|seats?)\b`)

	hotelRe = regexp.MustCompile(`(?i)\b(hotels?|stay(?:ing)?|accommodations?|lodging|rooms?)\b`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9,
}

func extractCabin(text string) (models.CabinClass, bool) {
	m := cabinRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	phrase := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
	phrase = strings.TrimPrefix(phrase, "in ")
	return models.ParseCabinClass(phrase)
}

func extractPassengers(text string) (int, bool) {
	m := passengerRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	word := strings.ToLower(m[1])
	if n, ok := numberWords[word]; ok {
		return n, true
	}
	n, err := strconv.Atoi(word)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func wantsHotel(text string) bool {
	return hotelRe.MatchString(text)
}
