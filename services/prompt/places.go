package prompt

import (
	"regexp"
	"strings"
	"unicode"
)

var wordRe = regexp.MustCompile(`[\p{L}][\p{L}'.\-]*`)

// Capitalized words that never start or continue a place name.
var notPlaces = toSet(
	"i", "i'm", "i'd", "i'll", "we", "me", "my", "our", "you", "please", "hi", "hello", "hey", "thanks",
	"book", "booking", "find", "show", "search", "get", "need", "want", "looking", "can", "could", "would",
	"flight", "flights", "fly", "hotel", "hotels", "stay", "trip", "round", "round-trip", "one", "one-way", "way",
	"return", "returning", "depart", "departing", "leaving", "from", "to", "and", "the", "a", "an", "with",
	"in", "on", "for", "between", "within", "budget", "price", "range", "usd", "cheap", "cheapest", "also",
	"economy", "premium", "business", "first", "class", "coach", "adults", "adult", "passengers", "nonstop", "direct",
	"january", "february", "march", "april", "may", "june", "july", "august", "september", "october", "november", "december",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"today", "tomorrow", "next", "this", "weekend",
	"going", "go", "travel", "traveling", "travelling", "plan", "planning", "help", "let's", "lets", "is", "are",
	"flying", "heading", "headed", "head", "visiting", "visit", "coming", "moving", "arriving", "hoping", "taking",
	"what", "how", "where", "when", "any", "there", "it", "tell", "give", "send", "reserve", "make", "arrange",
)

// Lower-case particles allowed inside a multi-word place ("Rio de Janeiro").
var particles = toSet("de", "da", "del", "do", "dos", "la", "le", "les", "el", "of", "upon", "am", "sur")

var routeRe = regexp.MustCompile(`(?i)\bfrom\s+([a-z][a-z .'\-]*?)\s+to\s+([a-z][a-z .'\-]*?)(?:\s+(?:on|in|for|from|between|within|departing|leaving|around|next|this|at|by|with|under|and|returning)\b|[,.!?;\d]|$)`)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

type place struct {
	name string
	cue  string // lower-cased word before the place
}

// extractPlaces finds runs of capitalized words in text order, de-duplicated
// case-insensitively. A lower-case "from X to Y" phrase is used when fewer
// than two capitalized places are found.
func extractPlaces(text string) []place {
	locs := wordRe.FindAllStringIndex(text, -1)
	var (
		out     []place
		seen    = make(map[string]bool)
		current []string
		cue     string
		prevEnd = -1
		prev    string
	)
	flush := func() {
		// trailing particles are not part of the name
		for len(current) > 0 {
			if _, ok := particles[current[len(current)-1]]; !ok {
				break
			}
			current = current[:len(current)-1]
		}
		if len(current) > 0 {
			name := strings.Join(current, " ")
			key := strings.ToLower(name)
			if !seen[key] {
				seen[key] = true
				out = append(out, place{name: name, cue: cue})
			}
		}
		current = nil
	}

	for _, loc := range locs {
		word := strings.TrimRight(text[loc[0]:loc[1]], ".'-")
		lower := strings.ToLower(word)
		adjacent := prevEnd >= 0 && strings.TrimSpace(text[prevEnd:loc[0]]) == ""

		_, stop := notPlaces[lower]
		_, particle := particles[lower]
		switch {
		case isCapitalized(word) && !stop:
			if len(current) == 0 || !adjacent {
				flush()
				cue = prev
			}
			current = append(current, word)
		case particle && len(current) > 0 && adjacent:
			current = append(current, lower)
		default:
			flush()
		}
		prevEnd = loc[1]
		prev = lower
	}
	flush()

	if len(out) >= 2 {
		return out
	}
	if m := routeRe.FindStringSubmatch(text); m != nil {
		from, to := titleWords(m[1]), titleWords(m[2])
		if from != "" && to != "" && !strings.EqualFold(from, to) {
			return []place{{name: from, cue: "from"}, {name: to, cue: "to"}}
		}
	}
	return out
}

// assignPlaces picks origin and destination. A place after "from" and one
// after "to" win; otherwise the first two places in text order are origin
// and destination. A single place is the destination.
func assignPlaces(places []place) (origin, destination string) {
	switch len(places) {
	case 0:
		return "", ""
	case 1:
		return "", places[0].name
	}
	for _, p := range places {
		if p.cue == "from" && origin == "" {
			origin = p.name
		}
		if p.cue == "to" && destination == "" {
			destination = p.name
		}
	}
	if origin != "" && destination != "" && origin != destination {
		return origin, destination
	}
	return places[0].name, places[1].name
}

func isCapitalized(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

func titleWords(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, w := range words {
		if _, ok := particles[strings.ToLower(w)]; ok && i > 0 {
			words[i] = strings.ToLower(w)
			continue
		}
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
