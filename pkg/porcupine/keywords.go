package porcupine

import (
	"fmt"
	"strings"
)

// BuiltInKeyword is a keyword shipped with the engine resources
type BuiltInKeyword string

const (
	KeywordAlexa       BuiltInKeyword = "Alexa"
	KeywordAmericano   BuiltInKeyword = "Americano"
	KeywordBlueberry   BuiltInKeyword = "Blueberry"
	KeywordBumblebee   BuiltInKeyword = "Bumblebee"
	KeywordComputer    BuiltInKeyword = "Computer"
	KeywordGrapefruit  BuiltInKeyword = "Grapefruit"
	KeywordGrasshopper BuiltInKeyword = "Grasshopper"
	KeywordHeyGoogle   BuiltInKeyword = "Hey Google"
	KeywordHeySiri     BuiltInKeyword = "Hey Siri"
	KeywordJarvis      BuiltInKeyword = "Jarvis"
	KeywordOkGoogle    BuiltInKeyword = "Ok Google"
	KeywordPicovoice   BuiltInKeyword = "Picovoice"
	KeywordPorcupine   BuiltInKeyword = "Porcupine"
	KeywordTerminator  BuiltInKeyword = "Terminator"
)

// BuiltInKeywords lists every built-in keyword in declaration order
var BuiltInKeywords = []BuiltInKeyword{
	KeywordAlexa, KeywordAmericano, KeywordBlueberry, KeywordBumblebee,
	KeywordComputer, KeywordGrapefruit, KeywordGrasshopper, KeywordHeyGoogle,
	KeywordHeySiri, KeywordJarvis, KeywordOkGoogle, KeywordPicovoice,
	KeywordPorcupine, KeywordTerminator,
}

// IsValid reports whether k is one of BuiltInKeywords
func (k BuiltInKeyword) IsValid() bool {
	for _, b := range BuiltInKeywords {
		if b == k {
			return true
		}
	}
	return false
}

// FileName returns the packaged keyword file for platform, e.g. "hey google_linux.ppn"
func (k BuiltInKeyword) FileName(platform string) string {
	return strings.ToLower(string(k)) + "_" + platform + ".ppn"
}

// ParseBuiltInKeyword matches s case-insensitively against the built-in
// keywords. Underscores and dashes are treated as spaces.
func ParseBuiltInKeyword(s string) (BuiltInKeyword, error) {
	norm := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s))
	for _, k := range BuiltInKeywords {
		if strings.EqualFold(string(k), norm) {
			return k, nil
		}
	}
	return "", newError(StatusInvalidArgument, fmt.Sprintf("'%s' is not a built-in keyword", s))
}
