package services

import (
	"testing"
	"time"

	"github.com/intelogroup/searchmatic/db/models"
)

func TestNormalizeArticle(t *testing.T) {
	now := time.Now().UTC()

	payload := map[string]any{
		"title":    "  Effects of metformin  ",
		"author":   "Smith J; Doe A",
		"venue":    "The Lancet",
		"year":     float64(2019),
		"summary":  "A randomized trial.",
		"doi":      "10.1000/xyz",
		"pubmedId": "12345",
	}

	study := normalizeArticle("owner-1", "proj-1", payload, now)
	if study == nil {
		t.Fatal("expected study, got nil")
	}
	if study.Title != "Effects of metformin" {
		t.Fatalf("unexpected title %q", study.Title)
	}
	if study.Authors != "Smith J; Doe A" {
		t.Fatalf("expected author fallback key, got %q", study.Authors)
	}
	if study.Journal != "The Lancet" {
		t.Fatalf("expected venue fallback key, got %q", study.Journal)
	}
	if study.Year != 2019 {
		t.Fatalf("expected year 2019, got %d", study.Year)
	}
	if study.Abstract != "A randomized trial." {
		t.Fatalf("expected summary fallback key, got %q", study.Abstract)
	}
	if study.ScreeningStatus != models.ScreeningPending {
		t.Fatalf("expected pending screening, got %q", study.ScreeningStatus)
	}
}

func TestNormalizeArticleRequiresTitle(t *testing.T) {
	now := time.Now().UTC()

	if study := normalizeArticle("owner-1", "proj-1", map[string]any{"abstract": "no title here"}, now); study != nil {
		t.Fatalf("expected nil for missing title, got %+v", study)
	}
	if study := normalizeArticle("owner-1", "proj-1", map[string]any{"title": "   "}, now); study != nil {
		t.Fatalf("expected nil for blank title, got %+v", study)
	}
}

func TestIntField(t *testing.T) {
	cases := []struct {
		payload map[string]any
		want    int
	}{
		{map[string]any{"year": float64(2021)}, 2021},
		{map[string]any{"year": 1999}, 1999},
		{map[string]any{"year": " 2005 "}, 2005},
		{map[string]any{"year": "not a year"}, 0},
		{map[string]any{}, 0},
	}

	for i, tc := range cases {
		if got := intField(tc.payload, "year"); got != tc.want {
			t.Fatalf("case %d: expected %d, got %d", i, tc.want, got)
		}
	}
}
