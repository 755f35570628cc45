package openai

import (
	"fmt"
	"strings"
)

// Message is a chat message passed to the provider.
type Message struct {
	Role    string
	Content string
}

const systemPrompt = `You are a resume writing assistant. You receive a resume as JSON and
return an improved version with the same JSON structure. Strengthen bullet points,
quantify achievements where the source data supports it, and keep every factual claim
from the input. Respond with JSON only.`

// BuildPrompt assembles the generation messages.
func BuildPrompt(input PromptInput) []Message {
	var user strings.Builder
	user.WriteString("Improve the following resume.")
	if strings.TrimSpace(input.TargetRole) != "" {
		fmt.Fprintf(&user, " Tailor it for the role: %s.", input.TargetRole)
	}
	if strings.TrimSpace(input.Instructions) != "" {
		fmt.Fprintf(&user, " Additional instructions: %s.", input.Instructions)
	}
	user.WriteString("\n\nResume JSON:\n")
	user.WriteString(input.ResumeJSON)

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user.String()},
	}
}

// PromptInput carries the fields used to build a generation prompt.
type PromptInput struct {
	ResumeJSON   string
	TargetRole   string
	Instructions string
}

// buildFixPrompt asks the model to repair output that was not valid JSON.
func buildFixPrompt(raw []byte) []Message {
	return []Message{
		{Role: "system", Content: "You repair malformed JSON. Respond with the corrected JSON only, no commentary."},
		{Role: "user", Content: "Fix this JSON so it parses:\n" + string(raw)},
	}
}
