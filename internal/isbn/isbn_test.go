package isbn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"hyphens removed", "978-3-16-148410-0", "9783161484100"},
		{"surrounding whitespace trimmed", "  0743273567 ", "0743273567"},
		{"hyphens and whitespace", " 978-0-7432-7356-5\t", "9780743273565"},
		{"already clean", "9780743273565", "9780743273565"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"", "  ", "978-3-16-148410-0", " 0-7432-7356-7 ", "9783161484100"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"978-3-16-148410-0", true},
		{"9783161484100", true},
		{"074327356X", true},
		{"0743273567", true},
		{"", false},
		{"abc", false},
		{"12345", false},
		{"978316148410X", false},
		{"X743273567", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValid(tt.in), "input %q", tt.in)
	}
}
