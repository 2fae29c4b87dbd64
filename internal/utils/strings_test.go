package utils

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "AAPL",
			expected: []string{"AAPL"},
		},
		{
			name:     "two values",
			input:    "AAPL, MSFT",
			expected: []string{"AAPL", "MSFT"},
		},
		{
			name:     "three values with varied spacing",
			input:    "AAPL,  MSFT , NVDA",
			expected: []string{"AAPL", "MSFT", "NVDA"},
		},
		{
			name:     "no spaces after comma",
			input:    "ING,YAHOO",
			expected: []string{"ING", "YAHOO"},
		},
		{
			name:     "trailing comma",
			input:    "BTC,",
			expected: []string{"BTC"},
		},
		{
			name:     "leading comma",
			input:    ",ETH",
			expected: []string{"ETH"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
		{
			name:     "multiple commas",
			input:    ",,AAPL,,MSFT,,",
			expected: []string{"AAPL", "MSFT"},
		},
		{
			name:     "value with internal spaces preserved",
			input:    "Core Holdings, Real Estate",
			expected: []string{"Core Holdings", "Real Estate"},
		},
		{
			name:     "mixed spacing around values",
			input:    "  SAP.DE  ,  BMW.DE  ",
			expected: []string{"SAP.DE", "BMW.DE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseCSV_Idempotent(t *testing.T) {
	// Parsing an already-parsed single value should return same result
	input := "Tech"
	firstParse := ParseCSV(input)
	assert.Equal(t, []string{"Tech"}, firstParse)

	// Parsing the single result element should give same result
	if len(firstParse) > 0 {
		secondParse := ParseCSV(firstParse[0])
		assert.Equal(t, []string{"Tech"}, secondParse)
	}
}

func TestParseCSV_PreservesInput(t *testing.T) {
	// Verify that the function doesn't modify the input string
	input := "Energy, Technology"
	originalInput := input

	_ = ParseCSV(input)

	assert.Equal(t, originalInput, input, "input should not be modified")
}

func TestParseCSV_IdentifierLists(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "snapshot identifiers",
			input:    "AAPL, SAP.DE, US0378331005",
			expected: []string{"AAPL", "SAP.DE", "US0378331005"},
		},
		{
			name:     "crypto pairs",
			input:    "BTC-EUR,ETH",
			expected: []string{"BTC-EUR", "ETH"},
		},
		{
			name:     "group filter with spaces",
			input:    "Core Holdings, Speculative",
			expected: []string{"Core Holdings", "Speculative"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseIdentifiers(t *testing.T) {
	assert.Nil(t, ParseIdentifiers(" , "))
	assert.Equal(t,
		[]string{"AAPL", "SAP.DE", "BTC"},
		ParseIdentifiers("aapl, SAP.DE, AAPL, btc, sap.de"),
	)
}

func TestOperationTimer(t *testing.T) {
	done := OperationTimer("noop", zerolog.Nop())
	assert.GreaterOrEqual(t, done(), time.Duration(0))
}
