// Package color paints CLI output. NO_COLOR and non-terminal stdout turn it off.
package color

import (
	"hash/fnv"

	"github.com/fatih/color"
)

var (
	dim     = color.New(color.Faint)
	bold    = color.New(color.Bold)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
	info    = color.New(color.FgCyan)
)

// Predefined palette for per-user prefixes
var userColors = []*color.Color{
	color.New(color.FgHiRed),
	color.New(color.FgHiGreen),
	color.New(color.FgHiYellow),
	color.New(color.FgHiBlue),
	color.New(color.FgHiMagenta),
	color.New(color.FgHiCyan),
	color.New(color.FgBlue),
	color.New(color.FgMagenta),
}

func Dim(s string) string     { return dim.Sprint(s) }
func Bold(s string) string    { return bold.Sprint(s) }
func Success(s string) string { return success.Sprint(s) }
func Warning(s string) string { return warning.Sprint(s) }
func Failure(s string) string { return failure.Sprint(s) }

// Status colors a task status by how far along it is.
func Status(status string) string {
	switch status {
	case "todo":
		return dim.Sprint(status)
	case "inprogress":
		return info.Sprint(status)
	case "completed":
		return warning.Sprint(status)
	case "verified":
		return success.Sprint(status)
	}
	return status
}

func Verdict(working bool) string {
	if working {
		return success.Sprint("working")
	}
	return failure.Sprint("not working")
}

// User returns the email painted in a color that is stable per email.
func User(email string) string {
	h := fnv.New32a()
	h.Write([]byte(email))
	return userColors[h.Sum32()%uint32(len(userColors))].Sprint(email)
}

// SetEnabled forces color on or off regardless of the terminal.
func SetEnabled(on bool) {
	color.NoColor = !on
}
