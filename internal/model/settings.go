package model

// Settings carries per-job render preferences. Zero values fall back to the
// configured media defaults.
type Settings struct {
	Voice      string `json:"voice,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FPS        int    `json:"fps,omitempty"`
	Background string `json:"background,omitempty"`
	TextColor  string `json:"text_color,omitempty"`
}

// WithDefaults fills empty fields from defaults.
func (s Settings) WithDefaults(defaults Settings) Settings {
	if s.Voice == "" {
		s.Voice = defaults.Voice
	}
	if s.Width <= 0 {
		s.Width = defaults.Width
	}
	if s.Height <= 0 {
		s.Height = defaults.Height
	}
	if s.FPS <= 0 {
		s.FPS = defaults.FPS
	}
	if s.Background == "" {
		s.Background = defaults.Background
	}
	if s.TextColor == "" {
		s.TextColor = defaults.TextColor
	}
	return s
}
