package reply

import (
	"fmt"
	"strings"
)

type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneFormal       Tone = "formal"
)

var toneInstructions = map[Tone]string{
	ToneFriendly:     "warm and approachable",
	ToneProfessional: "professional and courteous",
	ToneCasual:       "relaxed and conversational",
	ToneFormal:       "formal and respectful",
}

const DefaultPrompt = "Reply to this comment from @{comment_author}: {comment_content}"

// AIRequest configures the generated fallback reply for a workspace.
type AIRequest struct {
	Tone      Tone              `json:"tone"`
	Prompt    string            `json:"prompt"`
	MaxLength int               `json:"maxLength"`
	Variables map[string]string `json:"variables"`
}

// ToneInstruction maps a tone to its fixed phrase. Unknown tones are treated
// as friendly.
func ToneInstruction(tone Tone) string {
	if phrase, ok := toneInstructions[tone]; ok {
		return phrase
	}
	return toneInstructions[ToneFriendly]
}

func SystemInstruction(tone Tone, maxLength int) string {
	return fmt.Sprintf("You reply to comments on social media posts on behalf of the account owner. "+
		"Write in a %s tone. Keep the reply under %d characters. Respond with the reply text only.",
		ToneInstruction(tone), maxLength)
}

// UserPrompt fills {comment_content}, {comment_author} and any custom
// {name} variables in prompt.
func UserPrompt(prompt string, content string, author string, vars map[string]string) string {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}
	pairs := []string{"{comment_content}", content, "{comment_author}", author}
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(prompt)
}
