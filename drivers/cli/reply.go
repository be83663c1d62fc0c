package cli

import (
	"regexp"
	"strings"

	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/nanoncore/nano-switchctrl/vendors/common"
)

// DefaultErrorPrompt starts every error line printed by plain-CLI switches
const DefaultErrorPrompt = "% "

// ParseReply judges the reply to one plain-CLI command. The reply must end
// with the operational prompt; any line after the command echo that starts
// with errorPrompt makes it a failure carrying that line as diagnostic.
func ParseReply(reply, command string, prompt *regexp.Regexp, errorPrompt string) types.Outcome {
	if prompt == nil {
		prompt = DefaultPromptPattern
	}
	if errorPrompt == "" {
		errorPrompt = DefaultErrorPrompt
	}

	lines := strings.Split(common.CleanReply(reply), "\n")

	// The last non-empty line must be the prompt
	last := len(lines) - 1
	for last >= 0 && strings.TrimSpace(lines[last]) == "" {
		last--
	}
	if last < 0 || !prompt.MatchString(strings.TrimSpace(lines[last])) {
		return types.MalformedReply("no operational prompt after reply to " + strings.TrimSpace(command))
	}

	command = strings.TrimSpace(command)
	body := lines[:last]
	for i, line := range body {
		if command != "" && strings.Contains(line, command) {
			body = body[i+1:]
			break
		}
	}

	marker := strings.TrimSpace(errorPrompt)
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, marker) {
			diag := strings.TrimSpace(strings.TrimPrefix(trimmed, marker))
			if diag == "" {
				diag = "command rejected"
			}
			return types.Failure(diag)
		}
	}
	return types.Success()
}
