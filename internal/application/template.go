package application

import (
	"strconv"
	"strings"
)

// daysPlaceholder is the only placeholder message templates understand.
const daysPlaceholder = "{{days}}"

// Default message templates used when none are configured.
const (
	DefaultWarningMessage  = "This PR has been inactive for {{days}} days. It will be automatically closed in 7 days unless activity is detected."
	DefaultClosingMessage  = "This PR has been closed due to {{days}} days of inactivity."
	DefaultReprieveMessage = "This PR has been granted a temporary stay of execution."
)

// Messages holds the three comment templates posted by the reaper.
type Messages struct {
	Warning  string
	Closing  string
	Reprieve string
}

// DefaultMessages returns the built-in templates.
func DefaultMessages() Messages {
	return Messages{
		Warning:  DefaultWarningMessage,
		Closing:  DefaultClosingMessage,
		Reprieve: DefaultReprieveMessage,
	}
}

// RenderMessage substitutes every literal {{days}} in tmpl with days.
// A template without the placeholder is returned unchanged.
func RenderMessage(tmpl string, days int) string {
	return strings.ReplaceAll(tmpl, daysPlaceholder, strconv.Itoa(days))
}
