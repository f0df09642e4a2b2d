package stt

import "testing"

func TestParseLanguage(t *testing.T) {
	cases := []struct {
		input    string
		expected Language
	}{
		{"", LanguageAuto},
		{"auto", LanguageAuto},
		{"en", LanguageEnglish},
		{"uk", LanguageUkrainian},
		{"sv", Language{code: "sv"}}, // open variant, passed through
	}

	for _, tc := range cases {
		got := ParseLanguage(tc.input)
		if got != tc.expected {
			t.Errorf("ParseLanguage(%q): expected %v, got %v", tc.input, tc.expected, got)
		}
	}
}

func TestLanguageAuto(t *testing.T) {
	if !LanguageAuto.IsAuto() {
		t.Error("Expected zero language to be auto")
	}
	if LanguageAuto.Code() != "" {
		t.Errorf("Expected empty code for auto, got %q", LanguageAuto.Code())
	}
	if LanguageAuto.String() != "auto" {
		t.Errorf("Expected string auto, got %q", LanguageAuto.String())
	}
	if LanguageEnglish.IsAuto() {
		t.Error("Expected en not to be auto")
	}
	if LanguageEnglish.Code() != "en" {
		t.Errorf("Expected code en, got %q", LanguageEnglish.Code())
	}
}
