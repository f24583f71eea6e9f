// Package format renders Telegram HTML parse-mode fragments.
package format

import (
	"html"
	"strings"
)

// Escape makes user supplied text safe for HTML parse mode.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Bold wraps escaped text in <b>.
func Bold(s string) string {
	return "<b>" + Escape(s) + "</b>"
}

// Italic wraps escaped text in <i>.
func Italic(s string) string {
	return "<i>" + Escape(s) + "</i>"
}

// Lines joins non-empty lines with newlines.
func Lines(lines ...string) string {
	out := lines[:0:0]
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
