package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/de-tools/market-pulse/pkg/models/domain"
)

// ErrMalformedResponse is returned when the model response is missing
// required fields. The run fails; nothing is coerced or defaulted.
var ErrMalformedResponse = errors.New("malformed model response")

type rawScenario struct {
	Label       string   `json:"label"`
	Probability *float64 `json:"probability"`
	Kind        string   `json:"kind"`
	Narrative   string   `json:"narrative"`
}

type rawResponse struct {
	Scenarios []rawScenario `json:"scenarios"`
	Narrative string        `json:"narrative"`
}

// Parse extracts scenarios and the free-form narrative from the raw
// completion text. The model is asked for strict JSON but often wraps
// it in prose or a code fence, so the first balanced object is used.
func Parse(raw string) ([]domain.Scenario, string, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, "", fmt.Errorf("%w: no JSON object in response", ErrMalformedResponse)
	}

	var decoded rawResponse
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(decoded.Scenarios) == 0 {
		return nil, "", fmt.Errorf("%w: missing scenarios", ErrMalformedResponse)
	}
	if strings.TrimSpace(decoded.Narrative) == "" {
		return nil, "", fmt.Errorf("%w: missing narrative", ErrMalformedResponse)
	}

	scenarios := make([]domain.Scenario, 0, len(decoded.Scenarios))
	for i, s := range decoded.Scenarios {
		if strings.TrimSpace(s.Label) == "" {
			return nil, "", fmt.Errorf("%w: scenario %d has no label", ErrMalformedResponse, i)
		}
		if s.Probability == nil {
			return nil, "", fmt.Errorf("%w: scenario %q has no probability", ErrMalformedResponse, s.Label)
		}
		if *s.Probability < 0 || *s.Probability > 1 {
			return nil, "", fmt.Errorf("%w: scenario %q probability %v outside [0,1]",
				ErrMalformedResponse, s.Label, *s.Probability)
		}
		scenarios = append(scenarios, domain.Scenario{
			Label:       s.Label,
			Probability: *s.Probability,
			Kind:        s.Kind,
			Narrative:   s.Narrative,
		})
	}

	return scenarios, decoded.Narrative, nil
}

func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return content[start : end+1]
}
