package meme

import (
	"fmt"
	"strings"
)

// Sociolect is a generational language style used to pick tone and vocabulary.
type Sociolect string

const (
	Boomer     Sociolect = "boomer"
	GenX       Sociolect = "gen-x"
	Millennial Sociolect = "millennial"
	GenZ       Sociolect = "gen-z"
)

// Sociolects lists every supported sociolect in a stable order.
var Sociolects = []Sociolect{Boomer, GenX, Millennial, GenZ}

// aliases maps accepted spellings onto the canonical value.
var aliases = map[string]Sociolect{
	"boomer":     Boomer,
	"boomers":    Boomer,
	"gen-x":      GenX,
	"genx":       GenX,
	"gen x":      GenX,
	"millennial": Millennial,
	"millenial":  Millennial,
	"gen-y":      Millennial,
	"gen-z":      GenZ,
	"genz":       GenZ,
	"gen z":      GenZ,
}

// ParseSociolect normalizes user input into a Sociolect.
// Unknown values return an error wrapping ErrInvalidInput.
func ParseSociolect(s string) (Sociolect, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if sl, ok := aliases[key]; ok {
		return sl, nil
	}
	return "", fmt.Errorf("%w: unknown sociolect %q (must be one of boomer, gen-x, millennial, gen-z)", ErrInvalidInput, s)
}

// Valid reports whether s is one of the four canonical sociolects.
func (s Sociolect) Valid() bool {
	switch s {
	case Boomer, GenX, Millennial, GenZ:
		return true
	}
	return false
}

func (s Sociolect) String() string {
	return string(s)
}
