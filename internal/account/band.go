package account

import "strings"

// Band is a score-range bucket used for filtering and display.
type Band string

const (
	BandAll    Band = "all"
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Bands lists the concrete score bands from highest to lowest.
var Bands = []Band{BandHigh, BandMedium, BandLow}

// dashboard selector labels
var bandLabels = map[string]Band{
	"high (80-100%)":  BandHigh,
	"medium (50-79%)": BandMedium,
	"low (<50%)":      BandLow,
}

// ParseBand accepts a band name or a dashboard label such as "High (80-100%)".
// The empty string selects all records.
func ParseBand(s string) (Band, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch Band(key) {
	case "", BandAll:
		return BandAll, nil
	case BandHigh, BandMedium, BandLow:
		return Band(key), nil
	}
	if b, ok := bandLabels[key]; ok {
		return b, nil
	}
	return "", invalid("unknown band %q", s)
}

// BandOf returns the band a valid score falls into.
func BandOf(score int) Band {
	action, err := Classify(score)
	if err != nil {
		return ""
	}
	switch action {
	case ActionSendReminder:
		return BandHigh
	case ActionOfferPaymentPlan:
		return BandMedium
	default:
		return BandLow
	}
}

// Contains reports whether score belongs to b.
func (b Band) Contains(score int) bool {
	if b == BandAll {
		return true
	}
	return BandOf(score) == b
}

// Color is the display color dashboards use for the band.
func (b Band) Color() string {
	switch b {
	case BandHigh:
		return "green"
	case BandMedium:
		return "orange"
	case BandLow:
		return "red"
	default:
		return ""
	}
}

// SelectByBand returns the records whose score falls in band, keeping input
// order. Records are not copied or modified.
func SelectByBand(records []*Record, band Band) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if band.Contains(r.PaymentScore) {
			out = append(out, r)
		}
	}
	return out
}

// Summary holds derived counts for charts. It is never stored.
type Summary struct {
	Total      int             `json:"total"`
	ByBand     map[Band]int    `json:"by_band"`
	BandColors map[Band]string `json:"band_colors"`
	ByAction   map[Action]int  `json:"by_action"`
	ByStatus   map[Status]int  `json:"by_status"`
}

// Summarize counts records by band, recommended action and status.
func Summarize(records []*Record) Summary {
	s := Summary{
		ByBand:     make(map[Band]int, len(Bands)),
		BandColors: make(map[Band]string, len(Bands)),
		ByAction:   make(map[Action]int, 3),
		ByStatus:   make(map[Status]int, 2),
	}
	for _, b := range Bands {
		s.ByBand[b] = 0
		s.BandColors[b] = b.Color()
	}
	for _, r := range records {
		s.Total++
		s.ByBand[BandOf(r.PaymentScore)]++
		s.ByAction[r.RecommendedAction]++
		s.ByStatus[r.Status]++
	}
	return s
}
