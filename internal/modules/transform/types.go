package transform

// Request is the validated pipeline input. UserID comes from the auth
// boundary; the remaining fields from the client.
type Request struct {
	UserID   string
	Action   string
	Text     string
	Options  map[string]interface{}
	CourseID string
	LessonID string
}

// Response is the pipeline output. Cached reflects whether the cache served
// the result, independent of whether an audio artifact is present.
type Response struct {
	Result      interface{}            `json:"result"`
	Format      ResultFormat           `json:"format"`
	Action      Action                 `json:"action"`
	Audio       *AudioInfo             `json:"audio"`
	Cached      bool                   `json:"cached"`
	Ref         string                 `json:"ref"`
	Fingerprint string                 `json:"fingerprint"`
	OptionsUsed map[string]interface{} `json:"optionsUsed"`
}

// AudioInfo describes a stored speech artifact. The payload itself is
// served from the audio endpoint, not inlined into the JSON response.
type AudioInfo struct {
	MimeType string `json:"mimeType"`
	Voice    string `json:"voice"`
	Size     int    `json:"size"`
	URL      string `json:"url,omitempty"`
}

type runTransformationDTO struct {
	Action   string                 `json:"action" binding:"required"`
	Text     string                 `json:"text" binding:"required"`
	Options  map[string]interface{} `json:"options"`
	CourseID string                 `json:"courseId"`
	LessonID string                 `json:"lessonId"`
}
