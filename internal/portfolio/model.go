package portfolio

import "time"

// Project is one portfolio entry shown on the site and summarized for the
// persona prompt.
type Project struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Technologies []string  `json:"technologies"`
	DemoURL      string    `json:"demoUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Prompt is an operator-seeded instruction appended to the persona prompt.
// Only active prompts are served to the pipeline.
type Prompt struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Active bool   `json:"active"`
}
