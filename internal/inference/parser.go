package inference

import (
	"encoding/json"
	"fmt"
)

// The inference service has renamed fields across versions. Rather than pin
// one schema and break on drift, the parser probes candidate keys in order.
var (
	labelKeys       = []string{"label", "prediction", "class", "result"}
	probabilityKeys = []string{"ai_probability", "probability", "ai_prob", "score"}
	certaintyKeys   = []string{"certainty", "confidence"}
	modelKeys       = []string{"model_used", "model"}
)

// ParsePrediction decodes an inference response tolerantly. A missing label
// is not an error; a response carrying neither label nor probability is.
func ParsePrediction(data []byte) (Prediction, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Prediction{}, fmt.Errorf("decoding response: %w", err)
	}

	pred := Prediction{}
	label, hasLabel := firstString(raw, labelKeys)
	pred.Label = label
	prob, hasProb := firstFloat(raw, probabilityKeys)
	pred.AIProbability = prob

	if !hasLabel && !hasProb {
		return Prediction{}, fmt.Errorf("response carries no recognizable label or probability field")
	}

	if certainty, ok := firstFloat(raw, certaintyKeys); ok {
		pred.Certainty = certainty
	} else {
		pred.Certainty = prob
	}
	pred.ModelUsed, _ = firstString(raw, modelKeys)

	return pred, nil
}

func firstString(raw map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func firstFloat(raw map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := raw[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}
