package insight

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/allenheltondev/dirt-man/pkg/models"
)

// Evidence snapshots every input handed to the model, also persisted
// verbatim on the resulting Insight.
type Evidence struct {
	HardwareID         string               `json:"hardware_id"`
	HourlyAggregates   []models.Aggregate   `json:"hourly_aggregates_24h"`
	Last7DayAggregates []models.Aggregate   `json:"aggregates_7d"`
	RecentEvents       []models.Event       `json:"events_24h"`
	Profile            models.DeviceProfile `json:"profile"`
	ValidHours         int                  `json:"valid_hours"`
}

// DraftInsight is the model's expected JSON shape before sanitization and
// persistence.
type DraftInsight struct {
	Summary               string                  `json:"summary"`
	Recommendations       []models.Recommendation `json:"recommendations"`
	Confidence            models.Confidence       `json:"confidence"`
	Trend                 models.Trend            `json:"trend"`
	GrowthStageSuggestion string                  `json:"growth_stage_suggestion,omitempty"`
}

// buildPrompt renders the structured prompt instructing the model to return
// strict JSON and forbidding disease diagnosis.
func buildPrompt(ev Evidence) (string, error) {
	evidenceJSON, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("insight: encode evidence: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are assisting with plant care insights from sensor telemetry.\n")
	b.WriteString("Given the following evidence, respond with STRICT JSON only, matching exactly this shape:\n")
	b.WriteString(`{"summary": string, "recommendations": [{"action": string, "reason": string, "urgency": "low"|"medium"|"high"}], "confidence": "low"|"medium"|"high", "trend": "improving"|"declining"|"stable", "growth_stage_suggestion": string (optional)}`)
	b.WriteString("\n\nDo not diagnose plant diseases, pathogens, or infections under any circumstance; describe physical conditions only.\n")
	b.WriteString("Evidence:\n")
	b.Write(evidenceJSON)
	return b.String(), nil
}
