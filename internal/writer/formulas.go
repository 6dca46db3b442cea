// Package writer generates personalised icebreakers and subject lines
// for businesses with emails. Formula weights, forbidden phrases and
// fallback subjects ship as an embedded YAML config that a file can
// override per key.
package writer

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed formulas.yaml
var defaultFormulasYAML []byte

// Formula names. Auto mode draws one of these by weighted random.
const (
	FormulaWebsiteInsight   = "website_insight"
	FormulaLocalContext     = "local_context"
	FormulaIndustryQuestion = "industry_question"
	FormulaSocialProof      = "social_proof"
	FormulaDirectValue      = "direct_value"
	FormulaCuriosityHook    = "curiosity_hook"
	FormulaProblemAgitation = "problem_agitation"
)

// Campaign template names. An explicit template pins the formula; "auto"
// leaves the choice to the weighted draw.
const (
	TemplateAuto             = "auto"
	TemplateSpecificQuestion = "specific_question"
	TemplatePeerSocialProof  = "peer_social_proof"
	TemplateWebsiteInsight   = "website_insight"
	TemplateProblemAgitation = "problem_agitation"
	TemplateCuriosityHook    = "curiosity_hook"
	TemplateDirectValue      = "direct_value"
)

// formulaForTemplate maps explicit campaign templates onto formulas.
var formulaForTemplate = map[string]string{
	TemplateSpecificQuestion: FormulaIndustryQuestion,
	TemplatePeerSocialProof:  FormulaSocialProof,
	TemplateWebsiteInsight:   FormulaWebsiteInsight,
	TemplateProblemAgitation: FormulaProblemAgitation,
	TemplateCuriosityHook:    FormulaCuriosityHook,
	TemplateDirectValue:      FormulaDirectValue,
}

// FormulaWeight configures one formula's draw weight. Website overrides
// replace the base outright; boosts multiply it.
type FormulaWeight struct {
	Base                float64 `yaml:"base"`
	WithWebsite         float64 `yaml:"with_website"`
	WithoutWebsite      float64 `yaml:"without_website"`
	TargetCategoryBoost float64 `yaml:"target_category_boost"`
	ReviewedBoost       float64 `yaml:"reviewed_boost"`
}

// Formulas holds the writer's tunable lists.
type Formulas struct {
	Formulas         map[string]FormulaWeight `yaml:"formulas"`
	ForbiddenPhrases []string                 `yaml:"forbidden_phrases"`
	FallbackSubjects []string                 `yaml:"fallback_subjects"`
}

// LoadFormulas parses the embedded defaults and, when path is non-empty,
// merges the file over them: formula entries replace per key, phrase
// lists replace wholesale when present.
func LoadFormulas(path string) (*Formulas, error) {
	var f Formulas
	if err := yaml.Unmarshal(defaultFormulasYAML, &f); err != nil {
		return nil, eris.Wrap(err, "writer: parse embedded formula config")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "writer: read formula config %s", path)
		}
		var override Formulas
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, eris.Wrapf(err, "writer: parse formula config %s", path)
		}
		for name, w := range override.Formulas {
			f.Formulas[name] = w
		}
		if len(override.ForbiddenPhrases) > 0 {
			f.ForbiddenPhrases = override.ForbiddenPhrases
		}
		if len(override.FallbackSubjects) > 0 {
			f.FallbackSubjects = override.FallbackSubjects
		}
	}

	return &f, nil
}

// Signals are the per-business facts that shift formula weights.
type Signals struct {
	HasSiteContent bool
	TargetCategory bool
	WellReviewed   bool
}

// Weights computes the effective weight of every formula for one draw.
func (f *Formulas) Weights(sig Signals) map[string]float64 {
	out := make(map[string]float64, len(f.Formulas))
	for name, w := range f.Formulas {
		eff := w.Base
		if sig.HasSiteContent && w.WithWebsite > 0 {
			eff = w.WithWebsite
		}
		if !sig.HasSiteContent && w.WithoutWebsite > 0 {
			eff = w.WithoutWebsite
		}
		if sig.TargetCategory && w.TargetCategoryBoost > 0 {
			eff *= w.TargetCategoryBoost
		}
		if sig.WellReviewed && w.ReviewedBoost > 0 {
			eff *= w.ReviewedBoost
		}
		if eff < 0 {
			eff = 0
		}
		out[name] = eff
	}
	return out
}

// pickFormula draws one formula name; roll must lie in [0, 1). Names are
// walked in sorted order so a given roll is stable across runs.
func pickFormula(weights map[string]float64, roll float64) string {
	names := make([]string, 0, len(weights))
	total := 0.0
	for name, w := range weights {
		if w > 0 {
			names = append(names, name)
			total += w
		}
	}
	if len(names) == 0 || total <= 0 {
		return FormulaIndustryQuestion
	}
	sort.Strings(names)

	target := roll * total
	acc := 0.0
	for _, name := range names {
		acc += weights[name]
		if target < acc {
			return name
		}
	}
	return names[len(names)-1]
}

// targetsCategory reports whether any business category matches the
// product's target list, case-insensitively.
func targetsCategory(categories, targets []string) bool {
	for _, c := range categories {
		for _, t := range targets {
			if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(t)) {
				return true
			}
		}
	}
	return false
}
