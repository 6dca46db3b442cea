package coverage

import (
	"sort"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/zipcatalog"
)

// profileParams are the ZIP-selection knobs for one coverage profile.
type profileParams struct {
	MinZips      int
	MaxZips      int // 0 means unbounded
	SpacingMiles float64
	MajorCities  int
	MediumCities int
	SmallCities  int
}

func paramsFor(profile model.Profile) profileParams {
	switch profile {
	case model.ProfileBudget:
		return profileParams{MinZips: 5, MaxZips: 10, SpacingMiles: 5.0, MajorCities: 5, MediumCities: 3, SmallCities: 2}
	case model.ProfileAggressive:
		return profileParams{MinZips: 25, MaxZips: 100, SpacingMiles: 3.0, MajorCities: 20, MediumCities: 15, SmallCities: 15}
	case model.ProfileCustom:
		return profileParams{MinZips: 1, MaxZips: 0, SpacingMiles: 4.0, MajorCities: 10, MediumCities: 8, SmallCities: 7}
	default: // balanced
		return profileParams{MinZips: 10, MaxZips: 25, SpacingMiles: 4.0, MajorCities: 10, MediumCities: 8, SmallCities: 7}
	}
}

// stateSpacingPad widens the distance threshold for statewide targets,
// which spread across many metros instead of packing one.
const stateSpacingPad = 1.0

// spacingForDensity derives the minimum-distance threshold from the average
// density of the top-scored candidates. Denser areas pack ZIPs tighter.
// Candidates without density metadata fall back to the profile default.
func spacingForDensity(cands []Candidate, fallback float64) float64 {
	top := make([]Candidate, len(cands))
	copy(top, cands)
	sortByScore(top)
	if len(top) > 10 {
		top = top[:10]
	}

	var sum float64
	var n int
	for _, c := range top {
		if c.DensityScore > 0 {
			sum += c.DensityScore
			n++
		}
	}
	if n == 0 {
		return fallback
	}

	switch avg := sum / float64(n); {
	case avg >= 0.8:
		return 2.0
	case avg >= 0.6:
		return 3.0
	case avg >= 0.4:
		return 5.0
	case avg >= 0.2:
		return 7.0
	default:
		return 10.0
	}
}

// sortByScore orders candidates by descending combined score, breaking
// ties by ZIP so selection is deterministic across runs.
func sortByScore(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		si, sj := cands[i].Score(), cands[j].Score()
		if si != sj {
			return si > sj
		}
		return cands[i].Zip < cands[j].Zip
	})
}

// selectSpaced walks candidates by descending score and accepts each one
// at least spacing miles from every already-accepted ZIP. If that yields
// fewer than minZips, the threshold relaxes to 0.7x; if still short, the
// top candidates fill the remainder regardless of distance. The result
// never exceeds maxZips (0 means unbounded).
func selectSpaced(cands []Candidate, spacing float64, minZips, maxZips int) []Candidate {
	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sortByScore(sorted)

	selected := greedySpaced(sorted, spacing, maxZips)
	if len(selected) < minZips {
		selected = greedySpaced(sorted, spacing*0.7, maxZips)
	}
	if len(selected) < minZips {
		selected = fillToMin(sorted, selected, minZips, maxZips)
	}
	return selected
}

func greedySpaced(sorted []Candidate, spacing float64, maxZips int) []Candidate {
	var selected []Candidate
	for _, c := range sorted {
		if maxZips > 0 && len(selected) >= maxZips {
			break
		}
		if farEnough(c, selected, spacing) {
			selected = append(selected, c)
		}
	}
	return selected
}

// farEnough reports whether c keeps the minimum distance to every selected
// candidate. Candidates without coordinates cannot be measured and pass.
func farEnough(c Candidate, selected []Candidate, spacing float64) bool {
	if c.Lat == 0 && c.Lng == 0 {
		return true
	}
	for _, s := range selected {
		if s.Lat == 0 && s.Lng == 0 {
			continue
		}
		if zipcatalog.DistanceMiles(c.Lat, c.Lng, s.Lat, s.Lng) < spacing {
			return false
		}
	}
	return true
}

// fillToMin appends the highest-scored unselected candidates until the
// selection reaches minZips or the pool runs out.
func fillToMin(sorted, selected []Candidate, minZips, maxZips int) []Candidate {
	if maxZips > 0 && minZips > maxZips {
		minZips = maxZips
	}
	have := make(map[string]bool, len(selected))
	for _, s := range selected {
		have[s.Zip] = true
	}
	for _, c := range sorted {
		if len(selected) >= minZips {
			break
		}
		if have[c.Zip] {
			continue
		}
		have[c.Zip] = true
		selected = append(selected, c)
	}
	sortByScore(selected)
	return selected
}

// dedupeByZip keeps the highest-scored candidate per ZIP. State-mode city
// fan-outs frequently propose the same ZIP from adjacent cities.
func dedupeByZip(cands []Candidate) []Candidate {
	best := make(map[string]Candidate, len(cands))
	for _, c := range cands {
		prev, ok := best[c.Zip]
		if !ok || c.Score() > prev.Score() {
			best[c.Zip] = c
		}
	}
	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sortByScore(out)
	return out
}
