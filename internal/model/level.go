package model

import (
	"strings"
)

// Level is the ordered severity enumeration. The zero value is Verbose.
type Level int

const (
	Verbose Level = iota
	Debug
	Information
	Warning
	Error
	Fatal
)

// Levels lists every level in ascending severity.
var Levels = []Level{Verbose, Debug, Information, Warning, Error, Fatal}

var levelNames = [...]string{"Verbose", "Debug", "Information", "Warning", "Error", "Fatal"}

// String returns the canonical name, which is also the persisted form.
func (l Level) String() string {
	if l < Verbose || l > Fatal {
		return "Unknown"
	}
	return levelNames[l]
}

// Valid reports whether l is one of the six defined levels.
func (l Level) Valid() bool {
	return l >= Verbose && l <= Fatal
}

// ParseLevel maps the canonical names and the usual short or upper-case
// spellings (TRACE, DBG, INFO, WRN, ERR, CRITICAL, PANIC ...) onto a Level.
func ParseLevel(s string) (Level, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(s))

	switch normalized {
	case "VERBOSE", "VRB", "TRACE", "TRAC", "TRC":
		return Verbose, true
	case "DEBUG", "DEBU", "DBG", "DEB":
		return Debug, true
	case "INFORMATION", "INFO", "INF":
		return Information, true
	case "WARNING", "WARN", "WRNG", "WRN":
		return Warning, true
	case "ERROR", "ERR", "ERRO", "EROR":
		return Error, true
	case "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT", "PANIC", "PNC":
		return Fatal, true
	}
	return Verbose, false
}

// NormalizeLevel is ParseLevel with Information as the fallback, used on
// ingest where a missing or unrecognised level must not drop the event.
func NormalizeLevel(s string) Level {
	if lvl, ok := ParseLevel(s); ok {
		return lvl
	}
	return Information
}
