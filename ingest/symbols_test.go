package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSymbols(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"single symbol",
			"AAPL beats earnings expectations",
			[]string{"AAPL"},
		},
		{
			"multiple deduplicated",
			"TSLA and NVDA rally as TSLA announces deliveries",
			[]string{"NVDA", "TSLA"},
		},
		{
			"stop words excluded",
			"THE market IS UP AND stocks WILL rise",
			nil,
		},
		{
			"mixed case ignored",
			"Apple and tesla are not tickers here",
			nil,
		},
		{
			"length bounds",
			"TOOLONG is ignored but MSFT is kept",
			[]string{"MSFT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractSymbols(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Apple beats estimates", StripHTML("<p>Apple <b>beats</b> estimates</p>"))
	assert.Equal(t, `profits & "growth"`, StripHTML("profits &amp; &quot;growth&quot;"))
	assert.Equal(t, "spaced out", StripHTML("  spaced\n\n  out  "))
}
