package prescription

import (
	"strings"
	"time"
)

// Prescription is the structured payload the practice front-end submits for
// rendering and delivery. It is never persisted by the send pipeline.
type Prescription struct {
	PatientName        string       `json:"patientName"`
	PatientEmail       string       `json:"patientEmail"`
	PatientIDNumber    string       `json:"patientIdNumber,omitempty"`
	Diagnosis          string       `json:"diagnosis,omitempty"`
	Notes              string       `json:"notes,omitempty"`
	PrescriptionNumber string       `json:"prescriptionNumber,omitempty"`
	DoctorName         string       `json:"doctorName,omitempty"`
	PrescriptionDate   string       `json:"prescriptionDate,omitempty"`
	CreatedDate        string       `json:"createdDate,omitempty"`
	Medications        []Medication `json:"medications,omitempty"`
}

// Medication is a single prescribed item. Order within a prescription is
// preserved in the rendered output.
type Medication struct {
	MedicationName  string `json:"medicationName"`
	Form            string `json:"form,omitempty"`
	Dosage          string `json:"dosage,omitempty"`
	Instructions    string `json:"instructions,omitempty"`
	Frequency       string `json:"frequency,omitempty"`
	QuantityPerDose string `json:"quantityPerDose,omitempty"`
	Duration        string `json:"duration,omitempty"`
	Quantity        string `json:"quantity,omitempty"`
}

// FormNasalSpray selects nasal-route instruction wording.
const FormNasalSpray = "NAS"

// DisplayLine composes the single Rx line for a medication:
// "{name} {form}{dosage} {instructions} ({quantity})", with the duration
// appended as " x {duration}" when present. The quantity annotation is
// returned separately so the renderer can keep it attached to the last
// wrapped segment or right-align it on its own.
func (m Medication) DisplayLine() (line string, quantity string) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(m.MedicationName))
	if m.Form != "" || m.Dosage != "" {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(m.Form + m.Dosage))
	}

	instructions := strings.TrimSpace(m.Instructions)
	if instructions == "" {
		instructions = m.autoInstructions()
	}
	if instructions != "" {
		b.WriteString(" ")
		b.WriteString(instructions)
	}
	if m.Duration != "" {
		b.WriteString(" x ")
		b.WriteString(strings.TrimSpace(m.Duration))
	}

	if q := strings.TrimSpace(m.Quantity); q != "" {
		quantity = "(" + q + ")"
	}
	return b.String(), quantity
}

// autoInstructions synthesizes dosing text from frequency and quantity per
// dose when the doctor supplied no free-text instructions. Nasal sprays get
// per-nostril wording; everything else is treated as an oral solid.
func (m Medication) autoInstructions() string {
	qty := strings.TrimSpace(m.QuantityPerDose)
	freq := strings.TrimSpace(m.Frequency)
	if qty == "" && freq == "" {
		return ""
	}
	if qty == "" {
		qty = "1"
	}

	var unit, verb, route string
	if strings.EqualFold(strings.TrimSpace(m.Form), FormNasalSpray) {
		verb, unit, route = "Use", "spray", "into each nostril"
	} else {
		verb, unit, route = "Take", "tablet", "orally"
	}
	if qty != "1" {
		unit += "s"
	}

	parts := []string{verb, qty, unit, route}
	if freq != "" {
		parts = append(parts, freq)
	}
	return strings.Join(parts, " ")
}

// Date resolves the prescription's own date, falling back to the record
// creation date and finally to now. Both ISO timestamps and plain dates are
// accepted since the front-end has sent both over time.
func (p *Prescription) Date(now func() time.Time) time.Time {
	for _, raw := range []string{p.PrescriptionDate, p.CreatedDate} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return now()
}

// AttachmentFilename derives the PDF attachment name from the prescription
// number, with every non-alphanumeric character replaced by an underscore.
func (p *Prescription) AttachmentFilename() string {
	name := strings.TrimSpace(p.PrescriptionNumber)
	if name == "" {
		name = "prescription"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String() + ".pdf"
}
