package generate

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a helpful assistant that strictly follows instructions."

// BuildPrompt assembles the reply prompt from the request and the configured
// style policy. The persona/tone directive is data, not code, so the same
// generator serves any style policy.
func BuildPrompt(author, tweetText string, style Style) Prompt {
	var sb strings.Builder

	if d := strings.TrimSpace(style.Directive); d != "" {
		sb.WriteString(d)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Now write a reply to the following tweet.\n\n")
	fmt.Fprintf(&sb, "Original tweet author: @%s\n", author)
	sb.WriteString("Original tweet content:\n")
	sb.WriteString(tweetText)
	sb.WriteString("\n\n")

	sb.WriteString("Rules (output the final reply text directly, no explanations or prefixes):\n")
	fmt.Fprintf(&sb, "- Start with @%s and quote or paraphrase a core point of the tweet.\n", author)
	fmt.Fprintf(&sb, "- Length: %d-%d characters.\n", style.MinChars, style.MaxChars)
	if style.RequiredTrailer != "" {
		fmt.Fprintf(&sb, "- Include this exact string: %s\n", style.RequiredTrailer)
	}
	if len(style.Hashtags) > 0 {
		fmt.Fprintf(&sb, "- Use 1-2 hashtags chosen from: %s\n", strings.Join(style.Hashtags, " "))
	}
	sb.WriteString("- Match the language of the original tweet exactly.\n")
	sb.WriteString("- Vary phrasing between generations; never sound like a hard ad.\n")

	return Prompt{System: systemPrompt, User: sb.String()}
}
