package aggregate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"golang.org/x/text/cases"

	"github.com/sells-group/lodging-research/internal/model"
)

// CoordsEquivalenceMeters is the distance within which two coordinate
// claims describe the same place. Directory pins and geocoded addresses
// routinely disagree by a rooftop or a parking lot.
const CoordsEquivalenceMeters = 150

var (
	foldCaser   = cases.Fold()
	nonDigitRe  = regexp.MustCompile(`\D`)
	punctRe     = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multiSpace  = regexp.MustCompile(`\s+`)
	clockTimeRe = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*$`)
)

// Equivalent reports whether two field values agree for the given kind.
// Agreement between distinct sources earns a scoring bonus, so the
// comparison is deliberately tolerant of formatting differences.
func Equivalent(kind model.FieldKind, a, b any) bool {
	if a == nil || b == nil {
		return false
	}

	switch kind {
	case model.KindPhone:
		return phoneEquivalent(asString(a), asString(b))
	case model.KindURL:
		return normalizeURL(asString(a)) == normalizeURL(asString(b))
	case model.KindEmail:
		return foldCaser.String(strings.TrimSpace(asString(a))) == foldCaser.String(strings.TrimSpace(asString(b)))
	case model.KindAddress:
		return addressEquivalent(asString(a), asString(b))
	case model.KindCoords:
		return coordsEquivalent(a, b)
	case model.KindClockTime:
		na, aok := NormalizeClockTime(asString(a))
		nb, bok := NormalizeClockTime(asString(b))
		return aok && bok && na == nb
	case model.KindNumber, model.KindQuantity, model.KindPrice:
		fa, aok := asFloat(a)
		fb, bok := asFloat(b)
		return aok && bok && numbersClose(fa, fb)
	case model.KindList:
		return listEquivalent(a, b)
	default:
		return foldText(asString(a)) == foldText(asString(b))
	}
}

// foldText case-folds, strips punctuation, and collapses whitespace.
func foldText(s string) string {
	s = foldCaser.String(s)
	s = punctRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}

// phoneEquivalent compares digit sequences, tolerating a country prefix on
// one side ("+1 541 555 0100" vs "(541) 555-0100").
func phoneEquivalent(a, b string) bool {
	da := nonDigitRe.ReplaceAllString(a, "")
	db := nonDigitRe.ReplaceAllString(b, "")
	if len(da) < 7 || len(db) < 7 {
		return false
	}
	if da == db {
		return true
	}
	if len(da) > len(db) {
		return strings.HasSuffix(da, db)
	}
	return strings.HasSuffix(db, da)
}

func normalizeURL(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, "/")
}

// addressEquivalent compares comma-separated address components. The first
// component (street line) must match after folding; later components match
// when every token of the shorter side appears in the longer, so that
// "12 Lakeshore Dr, Bend, OR" agrees with
// "12 Lakeshore Dr, Bend, OR 97701, USA".
func addressEquivalent(a, b string) bool {
	ca := splitComponents(a)
	cb := splitComponents(b)
	if len(ca) == 0 || len(cb) == 0 {
		return false
	}
	if ca[0] != cb[0] {
		return false
	}

	short, long := ca[1:], cb[1:]
	if len(short) > len(long) {
		short, long = long, short
	}
	present := make(map[string]bool, len(long))
	for _, comp := range long {
		for _, tok := range strings.Fields(comp) {
			present[tok] = true
		}
	}
	for _, comp := range short {
		for _, tok := range strings.Fields(comp) {
			if !present[tok] {
				return false
			}
		}
	}
	return true
}

func splitComponents(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if folded := foldText(p); folded != "" {
			out = append(out, folded)
		}
	}
	return out
}

// coordsEquivalent treats two points as one place when they lie within
// CoordsEquivalenceMeters of each other.
func coordsEquivalent(a, b any) bool {
	pa, aok := asPoint(a)
	pb, bok := asPoint(b)
	if !aok || !bok {
		return false
	}
	return haversineMeters(pa, pb) <= CoordsEquivalenceMeters
}

// asPoint accepts [lat, lng] pairs in the shapes adapters and JSON
// round-trips produce.
func asPoint(v any) (*geom.Point, bool) {
	var lat, lng float64
	switch pair := v.(type) {
	case *geom.Point:
		return pair, pair != nil
	case []float64:
		if len(pair) != 2 {
			return nil, false
		}
		lat, lng = pair[0], pair[1]
	case []any:
		if len(pair) != 2 {
			return nil, false
		}
		fa, aok := asFloat(pair[0])
		fb, bok := asFloat(pair[1])
		if !aok || !bok {
			return nil, false
		}
		lat, lng = fa, fb
	default:
		return nil, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, false
	}
	p := geom.NewPointFlat(geom.XY, []float64{lng, lat})
	return p, true
}

const earthRadiusMeters = 6371000

func haversineMeters(a, b *geom.Point) float64 {
	lat1, lng1 := a.Y()*math.Pi/180, a.X()*math.Pi/180
	lat2, lng2 := b.Y()*math.Pi/180, b.X()*math.Pi/180

	dLat := lat2 - lat1
	dLng := lng2 - lng1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// NormalizeClockTime canonicalizes "3 PM", "3:00 pm" and "15:00" to 24h
// "15:00" form. Used for both equivalence and default comparison.
func NormalizeClockTime(s string) (string, bool) {
	m := clockTimeRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return "", false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return "", false
		}
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour > 12 {
			return "", false
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

func numbersClose(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= 1e-9*scale
}

// listEquivalent compares folded element sets ignoring order.
func listEquivalent(a, b any) bool {
	la, aok := asStringSlice(a)
	lb, bok := asStringSlice(b)
	if !aok || !bok || len(la) != len(lb) {
		return false
	}
	counts := make(map[string]int, len(la))
	for _, s := range la {
		counts[foldText(s)]++
	}
	for _, s := range lb {
		counts[foldText(s)]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asStringSlice(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
