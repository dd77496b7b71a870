package models

import "time"

// Study screening statuses.
const (
	ScreeningPending  = "pending"
	ScreeningIncluded = "included"
	ScreeningExcluded = "excluded"
)

// Study is a normalized citation record attached to a project. The raw
// imported payload it was promoted from lives in the document store.
type Study struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"projectId"`
	OwnerID         string    `json:"ownerId"`
	Title           string    `json:"title"`
	Authors         string    `json:"authors"`
	Journal         string    `json:"journal"`
	Year            int       `json:"year"`
	Abstract        string    `json:"abstract"`
	DOI             string    `json:"doi"`
	ScreeningStatus string    `json:"screeningStatus"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
