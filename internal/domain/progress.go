package domain

// Progress is a point-in-time view of a running batch.
type Progress struct {
	BatchID   string `json:"batch_id"`
	Total     int    `json:"total"`
	Submitted int    `json:"submitted"`
	InFlight  int    `json:"in_flight"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// Finished returns the number of jobs that reached a terminal state.
func (p Progress) Finished() int {
	return p.Succeeded + p.Failed
}
