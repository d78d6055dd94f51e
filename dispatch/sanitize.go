package dispatch

import (
	"regexp"
	"strings"
)

var (
	thinkBlockRegex = regexp.MustCompile(`(?is)<(think|thinking)>.*?</(think|thinking)>`)
	// An unterminated block means the model stopped mid-thought; drop the rest.
	openThinkRegex = regexp.MustCompile(`(?is)<(think|thinking)>.*$`)
	endTokenRegex  = regexp.MustCompile(`<\|eot_id\|>|<\|im_end\|>|<\|end\|>|<\|endoftext\|>|<end_of_turn>|</s>`)
	wrappingFence  = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \t]*\n(.*?)\n?```$")
)

// Sanitize strips decoration artifacts some models wrap around replies:
// reasoning blocks, end-of-turn tokens, and a code fence around the whole
// reply.
func Sanitize(text string) string {
	text = thinkBlockRegex.ReplaceAllString(text, "")
	text = openThinkRegex.ReplaceAllString(text, "")
	text = endTokenRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if m := wrappingFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	return text
}
