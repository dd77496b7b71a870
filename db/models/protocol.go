package models

import "time"

// Protocol captures the review protocol for a project using the PICO
// framework plus inclusion/exclusion criteria. One protocol per project.
type Protocol struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"projectId"`
	OwnerID           string    `json:"ownerId"`
	Title             string    `json:"title"`
	Population        string    `json:"population"`
	Intervention      string    `json:"intervention"`
	Comparison        string    `json:"comparison"`
	Outcome           string    `json:"outcome"`
	InclusionCriteria []string  `json:"inclusionCriteria"`
	ExclusionCriteria []string  `json:"exclusionCriteria"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
