package charts

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRenderer(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"categories", func() ([]byte, error) {
			return r.ByCategory([]core.CategoryAmount{{Name: "Food", Amount: d("120.50")}, {Name: "Rent", Amount: d("900")}})
		}},
		{"categories empty", func() ([]byte, error) { return r.ByCategory(nil) }},
		{"categories all zero", func() ([]byte, error) {
			return r.ByCategory([]core.CategoryAmount{{Name: "Food", Amount: decimal.Zero}})
		}},
		{"over time", func() ([]byte, error) {
			return r.OverTime([]core.Bucket{
				{Key: "2025-01", Start: core.NewDate(2025, 1, 1), Income: d("1000"), Expense: d("400")},
				{Key: "2025-02", Start: core.NewDate(2025, 2, 1), Income: d("800"), Expense: d("950")},
			})
		}},
		{"over time single bucket", func() ([]byte, error) {
			return r.OverTime([]core.Bucket{{Key: "2025-01", Income: d("10")}})
		}},
		{"over time empty", func() ([]byte, error) { return r.OverTime(nil) }},
		{"totals", func() ([]byte, error) { return r.Totals(core.Summary{Income: d("100"), Expense: d("40")}) }},
		{"totals negative net", func() ([]byte, error) { return r.Totals(core.Summary{Income: d("10"), Expense: d("40")}) }},
		{"totals zero", func() ([]byte, error) { return r.Totals(core.Summary{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.render()
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if !bytes.HasPrefix(b, pngMagic) {
				t.Fatalf("output is not a PNG (%d bytes)", len(b))
			}
		})
	}
}

func TestPaletteColor(t *testing.T) {
	if PaletteColor(0) != "#22D3EE" || PaletteColor(10) != PaletteColor(0) || PaletteColor(13) != "#F59E0B" {
		t.Fatal("palette should cycle every ten colours")
	}
}
