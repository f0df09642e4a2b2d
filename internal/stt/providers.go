package stt

// Provider describes one transcription HTTP API. The network engines
// all follow the same multipart-upload pattern and differ only in
// endpoint, model identifier and display name.
type Provider struct {
	// Name is a short identifier used in logs and engine status
	Name string
	// Endpoint is the transcription API URL
	Endpoint string
	// Model is the provider-specific model identifier
	Model string
}

// OpenAIProvider returns the OpenAI transcription API configuration
func OpenAIProvider() Provider {
	return Provider{
		Name:     "openai",
		Endpoint: "https://api.openai.com/v1/audio/transcriptions",
		Model:    "gpt-4o-transcribe",
	}
}

// VoxtralProvider returns the Mistral Voxtral transcription API configuration
func VoxtralProvider() Provider {
	return Provider{
		Name:     "voxtral",
		Endpoint: "https://api.mistral.ai/v1/audio/transcriptions",
		Model:    "voxtral-mini-latest",
	}
}

// GroqProvider returns the Groq Whisper transcription API configuration
func GroqProvider() Provider {
	return Provider{
		Name:     "groq",
		Endpoint: "https://api.groq.com/openai/v1/audio/transcriptions",
		Model:    "whisper-large-v3",
	}
}
