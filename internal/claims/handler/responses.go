package handler

type bulkTransitionResponse struct {
	UpdatedCount int `json:"updatedCount"`
}
