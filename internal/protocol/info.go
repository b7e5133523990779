package protocol

// Attribution credits the origin of a program or model.
type Attribution struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AsrModel describes one speech-to-text model offered by the server.
type AsrModel struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Languages   []string    `json:"languages"`
	Version     string      `json:"version,omitempty"`
}

// AsrProgram describes one speech-to-text service offered by the server.
type AsrProgram struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attribution Attribution `json:"attribution"`
	Installed   bool        `json:"installed"`
	Version     string      `json:"version,omitempty"`
	Models      []AsrModel  `json:"models"`
}

// Info is the capability descriptor sent in response to a describe event.
// It is built once at startup and shared read-only by all sessions.
type Info struct {
	ASR []AsrProgram `json:"asr"`
}

// Event converts the capability descriptor to a wire event.
func (i *Info) Event() *Event {
	return mustEvent(EventTypeInfo, i, nil)
}
