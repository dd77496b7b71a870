package services

import (
	"strings"
	"testing"

	"github.com/intelogroup/searchmatic/db/models"
)

func TestParseScreeningSuggestion(t *testing.T) {
	cases := []struct {
		name          string
		reply         string
		wantDecision  string
		wantRationale string
	}{
		{
			name:          "plain json",
			reply:         `{"decision":"include","rationale":"matches population"}`,
			wantDecision:  "include",
			wantRationale: "matches population",
		},
		{
			name:          "code fenced",
			reply:         "```json\n{\"decision\": \"exclude\", \"rationale\": \"wrong outcome\"}\n```",
			wantDecision:  "exclude",
			wantRationale: "wrong outcome",
		},
		{
			name:          "json embedded in prose",
			reply:         `Based on the criteria: {"decision":"include","rationale":"fits"} hope that helps`,
			wantDecision:  "include",
			wantRationale: "fits",
		},
		{
			name:          "uppercase decision normalized",
			reply:         `{"decision":"INCLUDE","rationale":"ok"}`,
			wantDecision:  "include",
			wantRationale: "ok",
		},
		{
			name:          "unknown decision becomes unsure",
			reply:         `{"decision":"maybe","rationale":"hard to tell"}`,
			wantDecision:  "unsure",
			wantRationale: "hard to tell",
		},
		{
			name:          "unparseable reply becomes unsure with raw rationale",
			reply:         "I cannot answer in JSON, sorry.",
			wantDecision:  "unsure",
			wantRationale: "I cannot answer in JSON, sorry.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseScreeningSuggestion(tc.reply)
			if got.Decision != tc.wantDecision {
				t.Fatalf("decision: expected %q, got %q", tc.wantDecision, got.Decision)
			}
			if got.Rationale != tc.wantRationale {
				t.Fatalf("rationale: expected %q, got %q", tc.wantRationale, got.Rationale)
			}
		})
	}
}

func TestWriteCriteria(t *testing.T) {
	protocol := &models.Protocol{
		Population:        "adults with type 2 diabetes",
		Intervention:      "metformin",
		Outcome:           "HbA1c reduction",
		InclusionCriteria: []string{"RCT", "english"},
		ExclusionCriteria: []string{"animal studies"},
	}

	var builder strings.Builder
	writeCriteria(&builder, protocol)
	prompt := builder.String()

	for _, want := range []string{
		"Population: adults with type 2 diabetes",
		"Intervention: metformin",
		"Outcome: HbA1c reduction",
		"Inclusion criteria: RCT; english",
		"Exclusion criteria: animal studies",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q, got:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "Comparison:") {
		t.Fatalf("empty comparison must be omitted, got:\n%s", prompt)
	}
}
