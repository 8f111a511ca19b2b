package domain

import "strings"

// Color is a side of the board. The zero value means "none".
type Color string

const (
	NoColor Color = ""
	White   Color = "white"
	Black   Color = "black"
)

func (c Color) Opposite() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func (c Color) Valid() bool { return c == White || c == Black }

// ColorChoice is the creator's color preference on a challenge.
type ColorChoice string

const (
	ColorWhite  ColorChoice = "white"
	ColorBlack  ColorChoice = "black"
	ColorRandom ColorChoice = "random"
)

// ParseColorChoice accepts white/w, black/b and random; empty means random.
func ParseColorChoice(s string) (ColorChoice, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return ColorWhite, true
	case "black", "b":
		return ColorBlack, true
	case "random", "r", "":
		return ColorRandom, true
	default:
		return "", false
	}
}

// NormalizeAddress trims surrounding whitespace from a participant address.
func NormalizeAddress(s string) string { return strings.TrimSpace(s) }
