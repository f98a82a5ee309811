package scoring

import (
	"fmt"
	"math"

	"github.com/osteele/liquid"
)

type compiledInsight struct {
	typ    InsightType
	impact string
	tpl    *liquid.Template
}

type compiledMessages struct {
	rules      map[string][]compiledInsight
	collection map[string]*liquid.Template
}

const (
	impactNone        = ""
	impactProbability = "probability"
	impactComposite   = "composite"
)

func newTemplateEngine() *liquid.Engine {
	engine := liquid.NewEngine()
	engine.RegisterFilter("percent", func(value float64) int {
		return int(math.Round(value * 100))
	})
	return engine
}

// compileMessages parses every template once. Problems are keyed by the
// template's location in the configuration.
func compileMessages(m MessageConfig) (compiledMessages, map[string]string) {
	engine := newTemplateEngine()
	problems := map[string]string{}
	out := compiledMessages{
		rules:      make(map[string][]compiledInsight, len(m.Rules)),
		collection: make(map[string]*liquid.Template, len(m.Collection)),
	}

	for _, ruleID := range sortedKeys(m.Rules) {
		if !knownRule(ruleID) {
			problems["messages.rules."+ruleID] = "unknown decision rule"
			continue
		}
		for i, it := range m.Rules[ruleID] {
			key := fmt.Sprintf("messages.rules.%s[%d]", ruleID, i)
			if !it.Type.valid() {
				problems[key+".type"] = fmt.Sprintf("unknown insight type %q", it.Type)
			}
			switch it.Impact {
			case impactNone, impactProbability, impactComposite:
			default:
				problems[key+".impact"] = fmt.Sprintf("unknown impact %q", it.Impact)
			}
			tpl, err := engine.ParseString(it.Text)
			if err != nil {
				problems[key+".text"] = err.Error()
				continue
			}
			out.rules[ruleID] = append(out.rules[ruleID], compiledInsight{typ: it.Type, impact: it.Impact, tpl: tpl})
		}
	}

	for _, id := range collectionConditionIDs() {
		text, ok := m.Collection[id]
		if !ok || text == "" {
			problems["messages.collection."+id] = "template is required"
			continue
		}
		tpl, err := engine.ParseString(text)
		if err != nil {
			problems["messages.collection."+id] = err.Error()
			continue
		}
		out.collection[id] = tpl
	}
	for id := range m.Collection {
		if !knownCondition(id) {
			problems["messages.collection."+id] = "unknown collection condition"
		}
	}

	return out, problems
}

// render never fails the caller; a template that errors at render time
// yields the fallback text
func render(tpl *liquid.Template, bindings map[string]interface{}, fallback string) string {
	if tpl == nil {
		return fallback
	}
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return fallback
	}
	return out
}
