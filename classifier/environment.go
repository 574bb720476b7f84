package classifier

import (
	"github.com/RyanBlaney/sonido-vibe/algorithms/common"
	"github.com/RyanBlaney/sonido-vibe/classifier/config"
	"github.com/RyanBlaney/sonido-vibe/classifier/extractors"
)

// scoreTable accumulates per-category scores and remembers the order in
// which categories first received a score. A category that was never touched
// is absent, which is different from present with score 0.
type scoreTable struct {
	scores  [config.NumCategories]float64
	present [config.NumCategories]bool
	order   []Category
}

func (t *scoreTable) add(c Category, delta float64) {
	if !t.present[c] {
		t.present[c] = true
		t.order = append(t.order, c)
	}
	t.scores[c] += delta
}

func (t *scoreTable) apply(adjustments []config.Adjustment) {
	for _, adj := range adjustments {
		t.add(adj.Category, adj.Delta)
	}
}

// best returns the highest scoring category. Equal scores go to the category
// inserted first.
func (t *scoreTable) best() (Category, float64, bool) {
	if len(t.order) == 0 {
		return config.CategoryCalm, 0, false
	}
	winner := t.order[0]
	for _, c := range t.order[1:] {
		if t.scores[c] > t.scores[winner] {
			winner = c
		}
	}
	return winner, t.scores[winner], true
}

// ClassifyFeatures maps a feature vector to an environment category. It never
// fails: when no rule fires the rule set's fallback is returned.
func ClassifyFeatures(f extractors.FeatureVector, rules *config.RuleSet) CategoryResult {
	if rules == nil {
		rules = config.DefaultRuleSet()
	}

	var table scoreTable

	switch {
	case f.Energy < rules.QuietEnergy:
		table.add(rules.Quiet.Category, rules.Quiet.Delta)
	case f.Energy < rules.ModerateEnergy:
		table.add(rules.Moderate.Category, rules.Moderate.Delta)
	case f.Energy < rules.BusyEnergy:
		if f.ZeroCrossingRate < rules.NatureZCR {
			table.add(rules.Nature.Category, rules.Nature.Delta)
		} else {
			table.add(rules.Urban.Category, rules.Urban.Delta)
		}
	case f.Energy >= rules.BusyEnergy:
		table.add(rules.Loud.Category, rules.Loud.Delta)
	}

	if f.ZeroCrossingRate > rules.HighZCR {
		table.apply(rules.HighZCRBonus)
	} else if f.ZeroCrossingRate < rules.LowZCR {
		table.apply(rules.LowZCRBonus)
	}

	if f.SpectralCentroidHz > rules.BrightCentroid {
		table.apply(rules.BrightBonus)
	} else if f.SpectralCentroidHz < rules.DarkCentroid {
		table.apply(rules.DarkBonus)
	}

	features := f
	category, score, ok := table.best()
	if !ok {
		return CategoryResult{
			Category:   rules.FallbackCategory,
			Confidence: rules.FallbackScore,
			Features:   &features,
		}
	}

	return CategoryResult{
		Category:   category,
		Confidence: common.Clamp(score, 0, 1),
		Features:   &features,
	}
}

// FallbackCategoryResult is the safe default returned when the waveform
// could not be analyzed
func FallbackCategoryResult(err error) CategoryResult {
	r := CategoryResult{Category: config.CategoryCalm, Confidence: 0.5}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
