package slug

import "testing"

func TestMake(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Appetizers", "appetizers"},
		{"two words", "Main Courses", "main-courses"},
		{"accents transliterated", "Café Crème!", "cafe-creme"},
		{"punctuation collapsed", "Soups & Stews!!", "soups-stews"},
		{"leading trailing junk", "  --Desserts--  ", "desserts"},
		{"mixed separators", "Sci-Fi/Fantasy Snacks", "sci-fi-fantasy-snacks"},
		{"digits kept", "Top 10 Dishes", "top-10-dishes"},
		{"non latin dropped", "寿司", ""},
		{"empty", "", ""},
		{"only punctuation", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Make(tt.input); got != tt.expected {
				t.Errorf("Make(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMakeIdempotent(t *testing.T) {
	inputs := []string{"Café Crème!", "Main Courses", "already-a-slug", "Top 10 Dishes"}
	for _, in := range inputs {
		once := Make(in)
		if twice := Make(once); twice != once {
			t.Errorf("Make not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}
