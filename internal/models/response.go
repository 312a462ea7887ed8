package models

type UserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type SessionResponse struct {
	SessionID     int64        `json:"session_id"`
	Status        string       `json:"status"`
	User          UserResponse `json:"user"`
	ThemeID       string       `json:"theme_id,omitempty"`
	InputImageURL string       `json:"input_image_url,omitempty"`
	LatestJob     *JobResponse `json:"latest_job,omitempty"`
}

type JobResponse struct {
	JobID        int64  `json:"job_id"`
	SessionID    int64  `json:"session_id"`
	Status       string `json:"status"`
	Mode         string `json:"mode"`
	OverlayURL   string `json:"overlay_url,omitempty"`
	ResultURL    string `json:"result_url,omitempty"`
	DriveLink    string `json:"drive_link,omitempty"`
	DownloadLink string `json:"download_link,omitempty"`
	QRURL        string `json:"qr_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	LogText      string `json:"log_text,omitempty"`
}

type ThemePublicResponse struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	ThumbnailURL string                 `json:"thumbnail_url"`
	Params       map[string]interface{} `json:"params"`
}

type ThemeInternalResponse struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	ThumbnailURL   string                 `json:"thumbnail_url"`
	Prompt         string                 `json:"prompt"`
	NegativePrompt string                 `json:"negative_prompt,omitempty"`
	Params         map[string]interface{} `json:"params"`
}

type GalleryItemResponse struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	DriveLink    string `json:"drive_link,omitempty"`
	DownloadLink string `json:"download_link,omitempty"`
	QRURL        string `json:"qr_url,omitempty"`
}

type OverlayUploadResponse struct {
	OverlayURL string `json:"overlay_url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

type CaptureResponse struct {
	PhotoURL string `json:"photo_url"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func NewJobResponse(j *Job) *JobResponse {
	return &JobResponse{
		JobID:        j.ID,
		SessionID:    j.SessionID,
		Status:       j.Status,
		Mode:         j.Mode,
		OverlayURL:   j.OverlayImagePath.String,
		ResultURL:    j.ResultImagePath.String,
		DriveLink:    j.DriveLink.String,
		DownloadLink: j.DownloadLink.String,
		QRURL:        j.QRURL.String,
		ErrorMessage: j.ErrorMessage.String,
		LogText:      j.LogText.String,
	}
}

func NewThemePublicResponse(t *Theme) ThemePublicResponse {
	return ThemePublicResponse{
		ID:           t.ID,
		Title:        t.Title,
		ThumbnailURL: t.ThumbnailURL,
		Params:       t.ParamMap(),
	}
}

func NewThemeInternalResponse(t *Theme) ThemeInternalResponse {
	return ThemeInternalResponse{
		ID:             t.ID,
		Title:          t.Title,
		ThumbnailURL:   t.ThumbnailURL,
		Prompt:         t.Prompt,
		NegativePrompt: t.NegativePrompt.String,
		Params:         t.ParamMap(),
	}
}
