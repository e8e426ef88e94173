package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

type Language string

const (
	LanguageVietnamese Language = "vi"
	LanguageEnglish    Language = "en"

	DefaultLanguage = LanguageVietnamese
)

var vietnameseWords = map[string]struct{}{
	"của": {}, "và": {}, "là": {}, "trong": {}, "có": {},
	"được": {}, "để": {}, "những": {}, "không": {}, "với": {},
	"một": {}, "bạn": {}, "tôi": {}, "này": {}, "các": {},
	"người": {}, "đã": {}, "cho": {}, "về": {}, "cần": {},
}

// DetectLanguage reports Vietnamese when text contains at least one common
// Vietnamese function word, English otherwise. Blank text gets the default.
func DetectLanguage(text string) Language {
	text = strings.TrimSpace(text)
	if text == "" {
		return DefaultLanguage
	}
	// NFC so that decomposed diacritics match the lexicon.
	words := strings.FieldsFunc(strings.ToLower(norm.NFC.String(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r)
	})
	for _, w := range words {
		if _, ok := vietnameseWords[w]; ok {
			return LanguageVietnamese
		}
	}
	return LanguageEnglish
}

func (l Language) Valid() bool {
	return l == LanguageVietnamese || l == LanguageEnglish
}
