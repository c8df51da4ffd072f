package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "maria@example.com", NormalizeEmail("  MARIA@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "formatted", input: "(212) 555-0142", expected: "2125550142"},
		{name: "with country code", input: "+1 212 555 0142", expected: "12125550142"},
		{name: "letters stripped", input: "212-555-CALL", expected: "212555"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.input))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "case and punctuation", input: "O'Brien", expected: "obrien"},
		{name: "suffix jr", input: "Robert Martinez Jr.", expected: "robert martinez"},
		{name: "suffix iii", input: "William Hale III", expected: "william hale"},
		{name: "collapses whitespace", input: "  Ana   Sofia  ", expected: "ana sofia"},
		{name: "hyphenated", input: "Smith-Jones", expected: "smithjones"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeZipCode(t *testing.T) {
	assert.Equal(t, "10027", NormalizeZipCode("10027"))
	assert.Equal(t, "10027", NormalizeZipCode("10027-1234"))
	assert.Equal(t, "", NormalizeZipCode("1002"))
	assert.Equal(t, "", NormalizeZipCode("not a zip"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "511 w 135th st", NormalizeAddress("511 West 135th Street"))
	assert.Equal(t, "12 oak ave apt 3", NormalizeAddress("12  Oak Avenue Apartment 3"))
}

func TestApplyChain(t *testing.T) {
	assert.Equal(t, "maria@example.com", ApplyChain("  MARIA@Example.COM ", "trim", "email"))
	// Unknown names pass the value through unchanged.
	assert.Equal(t, "x", ApplyChain("x", "no_such_normalizer"))
}

func TestRegisterAndGet(t *testing.T) {
	Register("reverse_test", func(s string) string {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r)
	})

	fn, ok := Get("reverse_test")
	assert.True(t, ok)
	assert.Equal(t, "cba", fn("abc"))

	_, ok = Get("missing")
	assert.False(t, ok)
}
