package output

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorEnabled decides whether text output is styled.
// mode is auto, always or never. In auto mode, in priority order:
// TERM=dumb, NO_COLOR and CLICOLOR=0 disable color, CLICOLOR_FORCE or
// FORCE_COLOR with a non-zero value enable it, and otherwise out must be
// a terminal.
func ColorEnabled(mode string, out *os.File, getenv func(string) string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if strings.EqualFold(strings.TrimSpace(getenv("TERM")), "dumb") {
		return false
	}
	if strings.TrimSpace(getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" {
		return false
	}
	if forceColor(getenv("CLICOLOR_FORCE")) || forceColor(getenv("FORCE_COLOR")) {
		return true
	}
	return isTerminal(out)
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func forceColor(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "0"
}
