package dto

// UpdateAnswerRequest replaces the stored answer of one question. An empty
// string clears it.
type UpdateAnswerRequest struct {
	Answer *string `json:"answer" binding:"required"`
}
