package ops

import (
	"strings"

	"github.com/rakunlabs/pcgate/internal/lang"
)

// registerClassify wires ClassifyIntent as a purely lexical, deterministic
// classifier: params.buckets maps an intent label to a list of keywords;
// the first bucket with a keyword match wins. This is intentionally not a
// learned model — classification must be auditable and reproducible.
func registerClassify(reg *lang.Registry) {
	reg.Register(simple("ClassifyIntent", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		text := strings.ToLower(arg0String(inputs))

		buckets, _ := params["buckets"].(map[string]any)
		order, _ := params["order"].([]any)

		checkBucket := func(label string) (bool, float64) {
			keywords, _ := buckets[label].([]any)
			for _, kw := range keywords {
				s, ok := kw.(string)
				if !ok {
					continue
				}
				if strings.Contains(text, strings.ToLower(s)) {
					return true, 0.8
				}
			}
			return false, 0
		}

		for _, o := range order {
			label, ok := o.(string)
			if !ok {
				continue
			}
			if matched, conf := checkBucket(label); matched {
				return lang.Map(map[string]lang.Value{
					"intent":     lang.String(label),
					"confidence": lang.ConfidenceValue(lang.NewConfidence(conf)),
				}), nil
			}
		}

		return lang.Map(map[string]lang.Value{
			"intent":     lang.String("unknown"),
			"confidence": lang.ConfidenceValue(lang.NewConfidence(0.3)),
		}), nil
	}))
}
