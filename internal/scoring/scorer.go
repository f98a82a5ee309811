package scoring

import (
	"math"
	"sort"
)

// Score combines a factor map into the composite score and conversion
// probability. Factors are summed in canonical order so equal inputs produce
// bit-identical output.
func Score(fm FactorMap, cfg *Config) Composite {
	total := 0.0
	contribs := make([]Contributor, 0, len(factorOrder))
	for _, f := range factorOrder {
		v, ok := fm[f]
		if !ok {
			continue
		}
		v = clip100(v)
		w := cfg.Weights[f]
		total += v * w
		contribs = append(contribs, Contributor{
			Name:         string(f),
			Value:        v,
			Weight:       w,
			Contribution: v * w,
		})
	}

	sort.SliceStable(contribs, func(i, j int) bool {
		if contribs[i].Contribution != contribs[j].Contribution {
			return contribs[i].Contribution > contribs[j].Contribution
		}
		return contribs[i].Name < contribs[j].Name
	})

	composite := int(clip100(math.Round(total)))

	p := float64(composite)/100 +
		clip100(fm[FactorIntent])/100*cfg.Probability.IntentModifier +
		clip100(fm[FactorTiming])/100*cfg.Probability.TimingModifier

	return Composite{
		Score:                 composite,
		ConversionProbability: clip01(p),
		Contributors:          contribs,
	}
}

// label returns the recommendation label of the first band the score reaches
func label(score int, bands []ScoreBand) string {
	for _, b := range bands {
		if score >= b.Min {
			return b.Label
		}
	}
	return ""
}
