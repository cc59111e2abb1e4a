// AngelaMos | 2026
// dto.go

package progress

type CompleteArticleRequest struct {
	Accuracy       float64        `json:"accuracy"        validate:"gte=0,lte=100"`
	TimeSpent      int            `json:"time_spent"      validate:"gte=0"`
	CompletionData map[string]any `json:"completion_data"`
}

type SubmitQuizRequest struct {
	Score   int            `json:"score"   validate:"gte=0"`
	Answers map[string]any `json:"answers"`
}

type HomophoneCheckRequest struct {
	ArticleID int64  `json:"article_id" validate:"required,gt=0"`
	Text      string `json:"text"       validate:"required,max=20000"`
}

type TypingSessionRequest struct {
	ArticleID       *int64  `json:"article_id"       validate:"omitempty,gt=0"`
	WPM             float64 `json:"wpm"              validate:"gte=0,lte=400"`
	Accuracy        float64 `json:"accuracy"         validate:"gte=0,lte=100"`
	DurationSeconds int     `json:"duration_seconds" validate:"gt=0"`
}

type CompletionResponse struct {
	ID        int64   `json:"id"`
	ArticleID int64   `json:"article_id"`
	Accuracy  float64 `json:"accuracy"`
	TimeSpent int     `json:"time_spent"`
}

type HomophoneCheckResponse struct {
	Check      *HomophoneCheck `json:"check"`
	Comparison Comparison      `json:"comparison"`
}
