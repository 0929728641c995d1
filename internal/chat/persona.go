package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/calebwren/portfolio-ai/internal/portfolio"
)

const (
	maxPromptProjects = 6
	maxRecapTurnChars = 200
)

// PersonaConfig carries the operator identity injected into the system
// prompt.
type PersonaConfig struct {
	Name     string
	Role     string
	Tagline  string
	Location string
	Email    string
	LinkedIn string
	GitHub   string
}

// ComposePrompt builds the system prompt from the persona, portfolio
// content, seeded prompts and the conversation window. The window is
// rendered inline as a recap so the completion request stays system
// prompt plus one user message. The starters directive teaches the model
// to append a fenced suggestion block that postprocessing later strips.
func ComposePrompt(persona PersonaConfig, projects []portfolio.Project, prompts []portfolio.Prompt, window []ChatMessage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, %s, speaking as an interactive avatar on your personal portfolio website.\n", persona.Name, persona.Role)
	if persona.Tagline != "" {
		b.WriteString(persona.Tagline + "\n")
	}
	b.WriteString("Answer as yourself in first person. Keep replies conversational and under three short paragraphs. Stay on topics related to your work, skills and availability.\n")

	if len(projects) > 0 {
		if len(projects) > maxPromptProjects {
			projects = projects[:maxPromptProjects]
		}
		b.WriteString("\nYour projects:\n")
		for _, p := range projects {
			line := "- " + p.Title + ": " + p.Description
			if len(p.Technologies) > 0 {
				line += " (built with " + strings.Join(p.Technologies, ", ") + ")"
			}
			if p.DemoURL != "" {
				line += " Demo: " + p.DemoURL
			}
			b.WriteString(line + "\n")
		}

		if skills := collectSkills(projects); len(skills) > 0 {
			b.WriteString("\nYour skills: " + strings.Join(skills, ", ") + "\n")
		}
	}

	var contact []string
	if persona.Email != "" {
		contact = append(contact, "email "+persona.Email)
	}
	if persona.LinkedIn != "" {
		contact = append(contact, "LinkedIn "+persona.LinkedIn)
	}
	if persona.GitHub != "" {
		contact = append(contact, "GitHub "+persona.GitHub)
	}
	if persona.Location != "" {
		contact = append(contact, "based in "+persona.Location)
	}
	if len(contact) > 0 {
		b.WriteString("\nContact: " + strings.Join(contact, "; ") + ".\n")
	}

	for _, p := range prompts {
		if p.Active {
			b.WriteString("\n" + p.Text + "\n")
		}
	}

	if len(window) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, turn := range window {
			label := "User"
			if turn.Role == RoleAssistant {
				label = "Assistant"
			}
			b.WriteString(label + ": " + truncateTurn(turn.Content) + "\n")
		}
	}

	b.WriteString("\nAfter your reply, append a fenced code block tagged `starters` containing two or three short follow-up questions the visitor might ask next, one per line.\n")
	return b.String()
}

// truncateTurn caps a recap line at 200 characters with an ellipsis.
func truncateTurn(text string) string {
	if len(text) <= maxRecapTurnChars {
		return text
	}
	return text[:maxRecapTurnChars] + "..."
}

// collectSkills flattens project technologies into a deduplicated, sorted
// list.
func collectSkills(projects []portfolio.Project) []string {
	seen := map[string]bool{}
	var skills []string
	for _, p := range projects {
		for _, tech := range p.Technologies {
			key := strings.ToLower(strings.TrimSpace(tech))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			skills = append(skills, strings.TrimSpace(tech))
		}
	}
	sort.Strings(skills)
	return skills
}
