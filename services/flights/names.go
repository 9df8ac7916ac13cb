package flights

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"travelagent/services/cache"
	"travelagent/services/inventory"
)

// Directory resolves airline and aircraft codes to display names. Every
// definitive upstream answer is cached for the Directory's lifetime, an
// empty one as a miss; transport failures, 401s and 429s are not.
type Directory struct {
	session  *inventory.Session
	airlines *cache.Cache[string]
	aircraft *cache.Cache[string]
	logger   *zap.Logger
}

func NewDirectory(session *inventory.Session, logger *zap.Logger) *Directory {
	return &Directory{
		session:  session,
		airlines: cache.New[string](nil),
		aircraft: cache.New[string](nil),
		logger:   logger,
	}
}

// Airline returns the display name for an airline code. fallback is the
// name the search response itself carried, used when the lookup fails.
func (d *Directory) Airline(ctx context.Context, code, fallback string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if name := d.resolve(ctx, d.airlines, code, d.lookupAirline); name != "" {
		return name
	}
	return firstNonEmpty(titleCase(fallback), knownAirlines[code], code)
}

// Aircraft is Airline for equipment codes.
func (d *Directory) Aircraft(ctx context.Context, code, fallback string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if name := d.resolve(ctx, d.aircraft, code, d.lookupAircraft); name != "" {
		return name
	}
	return firstNonEmpty(titleCase(fallback), code)
}

// resolve returns the cached or looked-up name for code, or "" when the
// caller should use its fallback.
func (d *Directory) resolve(ctx context.Context, names *cache.Cache[string], code string,
	lookup func(context.Context, string) (string, error)) string {
	if name, ok := names.Get(code); ok {
		return name
	}
	name, err := lookup(ctx, code)
	if err != nil {
		d.logger.Debug("name lookup failed", zap.String("code", code), zap.Error(err))
		if !definitive(err) {
			return ""
		}
	}
	names.Set(code, name, 0)
	return name
}

// definitive reports whether a failed lookup will fail the same way next
// time: a 4xx other than 401 and 429.
func definitive(err error) bool {
	var se *inventory.StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.StatusCode {
	case http.StatusUnauthorized, http.StatusTooManyRequests:
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500
}

func (d *Directory) lookupAirline(ctx context.Context, code string) (string, error) {
	var body struct {
		Data []struct {
			IATACode     string `json:"iataCode"`
			BusinessName string `json:"businessName"`
			CommonName   string `json:"commonName"`
		} `json:"data"`
	}
	if err := d.get(ctx, inventory.AirlinesPath, url.Values{"airlineCodes": {code}}, &body); err != nil {
		return "", err
	}
	for _, a := range body.Data {
		if a.IATACode != "" && !strings.EqualFold(a.IATACode, code) {
			continue
		}
		return titleCase(firstNonEmpty(a.CommonName, a.BusinessName)), nil
	}
	return "", nil
}

func (d *Directory) lookupAircraft(ctx context.Context, code string) (string, error) {
	var body struct {
		Data []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := d.get(ctx, inventory.AircraftPath, url.Values{"aircraftCodes": {code}}, &body); err != nil {
		return "", err
	}
	for _, a := range body.Data {
		if a.Code != "" && !strings.EqualFold(a.Code, code) {
			continue
		}
		return titleCase(a.Name), nil
	}
	return "", nil
}

func (d *Directory) get(ctx context.Context, path string, q url.Values, v any) error {
	resp, err := d.session.Do(ctx, inventory.Request{Method: http.MethodGet, Path: path, Query: q})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// titleCase turns "DELTA AIR LINES" into "Delta Air Lines". Mixed-case input
// is left alone.
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s != strings.ToUpper(s) {
		return s
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var knownAirlines = map[string]string{
	"TK": "Turkish Airlines",
	"LH": "Lufthansa",
	"AF": "Air France",
	"BA": "British Airways",
	"EK": "Emirates",
	"QR": "Qatar Airways",
	"PC": "Pegasus Airlines",
	"FR": "Ryanair",
	"U2": "EasyJet",
	"W6": "Wizz Air",
	"FZ": "FlyDubai",
	"HY": "Uzbekistan Airways",
	"UA": "United Airlines",
	"AA": "American Airlines",
	"DL": "Delta Air Lines",
	"KL": "KLM",
	"IB": "Iberia",
	"AZ": "ITA Airways",
	"OS": "Austrian Airlines",
	"LX": "Swiss International Air Lines",
	"SQ": "Singapore Airlines",
	"CX": "Cathay Pacific",
	"NH": "ANA",
	"JL": "Japan Airlines",
	"EY": "Etihad Airways",
	"SV": "Saudi Arabian Airlines",
	"MS": "EgyptAir",
	"RJ": "Royal Jordanian",
	"ET": "Ethiopian Airlines",
	"KQ": "Kenya Airways",
	"SA": "South African Airways",
	"WN": "Southwest Airlines",
	"B6": "JetBlue",
	"AS": "Alaska Airlines",
	"NK": "Spirit Airlines",
	"F9": "Frontier Airlines",
}
