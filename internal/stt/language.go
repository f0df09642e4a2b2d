package stt

// Language identifies the transcription language as an ISO 639-1 code.
// The zero value is automatic detection, in which case no language hint
// is sent to the inference service.
type Language struct {
	code string
}

// Well-known languages
var (
	LanguageAuto       = Language{}
	LanguageEnglish    = Language{code: "en"}
	LanguageSpanish    = Language{code: "es"}
	LanguageFrench     = Language{code: "fr"}
	LanguageGerman     = Language{code: "de"}
	LanguageItalian    = Language{code: "it"}
	LanguagePortuguese = Language{code: "pt"}
	LanguageDutch      = Language{code: "nl"}
	LanguagePolish     = Language{code: "pl"}
	LanguageUkrainian  = Language{code: "uk"}
	LanguageRussian    = Language{code: "ru"}
	LanguageJapanese   = Language{code: "ja"}
	LanguageKorean     = Language{code: "ko"}
	LanguageChinese    = Language{code: "zh"}
)

// ParseLanguage converts an ISO 639-1 code to a Language.
// Empty string and "auto" map to automatic detection; any other code is
// passed through to the inference service as-is.
func ParseLanguage(code string) Language {
	if code == "" || code == "auto" {
		return LanguageAuto
	}
	return Language{code: code}
}

// Code returns the ISO 639-1 code, or empty string for automatic detection
func (l Language) Code() string {
	return l.code
}

// IsAuto reports whether the language is automatic detection
func (l Language) IsAuto() bool {
	return l.code == ""
}

// String returns the code, or "auto" for automatic detection
func (l Language) String() string {
	if l.code == "" {
		return "auto"
	}
	return l.code
}
