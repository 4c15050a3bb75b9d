package prescription

import (
	"testing"
	"time"
)

func TestDisplayLine(t *testing.T) {
	tests := []struct {
		name     string
		med      Medication
		wantLine string
		wantQty  string
	}{
		{
			name: "explicit instructions with duration and quantity",
			med: Medication{
				MedicationName: "Amoxil",
				Form:           "CAP",
				Dosage:         "500mg",
				Instructions:   "Take 1 capsule three times daily",
				Duration:       "5 days",
				Quantity:       "15",
			},
			wantLine: "Amoxil CAP500mg Take 1 capsule three times daily x 5 days",
			wantQty:  "(15)",
		},
		{
			name: "auto oral instructions",
			med: Medication{
				MedicationName:  "Panado",
				Form:            "TAB",
				Dosage:          "500mg",
				Frequency:       "twice daily",
				QuantityPerDose: "2",
				Quantity:        "28",
			},
			wantLine: "Panado TAB500mg Take 2 tablets orally twice daily",
			wantQty:  "(28)",
		},
		{
			name: "auto nasal instructions",
			med: Medication{
				MedicationName:  "Flonase",
				Form:            "NAS",
				Dosage:          "50mcg",
				Frequency:       "every morning",
				QuantityPerDose: "1",
			},
			wantLine: "Flonase NAS50mcg Use 1 spray into each nostril every morning",
			wantQty:  "",
		},
		{
			name:     "bare medication",
			med:      Medication{MedicationName: "Probiotic"},
			wantLine: "Probiotic",
			wantQty:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, qty := tt.med.DisplayLine()
			if line != tt.wantLine {
				t.Errorf("line = %q, want %q", line, tt.wantLine)
			}
			if qty != tt.wantQty {
				t.Errorf("quantity = %q, want %q", qty, tt.wantQty)
			}
		})
	}
}

func TestDate(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return fixed }

	p := &Prescription{PrescriptionDate: "2026-02-01"}
	if got := p.Date(now); got.Day() != 1 || got.Month() != time.February {
		t.Fatalf("expected prescription date, got %s", got)
	}

	p = &Prescription{CreatedDate: "2026-01-15T08:30:00Z"}
	if got := p.Date(now); got.Day() != 15 || got.Month() != time.January {
		t.Fatalf("expected created date fallback, got %s", got)
	}

	p = &Prescription{PrescriptionDate: "not-a-date"}
	if got := p.Date(now); !got.Equal(fixed) {
		t.Fatalf("expected now fallback, got %s", got)
	}
}

func TestAttachmentFilename(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{"RX-2026/0042", "RX_2026_0042.pdf"},
		{"RX 17", "RX_17.pdf"},
		{"", "prescription.pdf"},
		{"plain42", "plain42.pdf"},
	}
	for _, tt := range tests {
		p := &Prescription{PrescriptionNumber: tt.number}
		if got := p.AttachmentFilename(); got != tt.want {
			t.Errorf("AttachmentFilename(%q) = %q, want %q", tt.number, got, tt.want)
		}
	}
}
