package models

// Transcription is the result of running audio through the speech-to-text collaborator.
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// TranscribeResponse is returned by POST /api/transcribe.
type TranscribeResponse struct {
	Transcription
	Filename string `json:"filename"`
}

// WebhookPayload is the provider message delivered to POST /api/webhook.
// Either AudioURL or AudioPath carries the audio; AudioURL wins when both are set.
type WebhookPayload struct {
	From        string `json:"from"`
	MessageType string `json:"message_type"`
	AudioURL    string `json:"audio_url,omitempty"`
	AudioPath   string `json:"audio_path,omitempty"`
	MessageID   string `json:"message_id"`
}

// WebhookResponse is returned for a transcribed audio message.
type WebhookResponse struct {
	Status    string  `json:"status"`
	MessageID string  `json:"message_id"`
	From      string  `json:"from"`
	Text      string  `json:"text"`
	Language  string  `json:"language"`
	Duration  float64 `json:"duration"`
}
