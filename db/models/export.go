package models

import "time"

// Export kinds and formats.
const (
	ExportKindConversations = "conversations"
	ExportKindStudies       = "studies"

	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"
)

// ExportLog records one export performed for a project.
type ExportLog struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	OwnerID   string    `json:"ownerId"`
	Kind      string    `json:"kind"`
	Format    string    `json:"format"`
	RowCount  int       `json:"rowCount"`
	CreatedAt time.Time `json:"createdAt"`
}
