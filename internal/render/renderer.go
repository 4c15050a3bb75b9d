package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/veldmed/practice-platform/internal/prescription"
	"github.com/veldmed/practice-platform/pkg/logging"
)

var renderTracer = otel.Tracer("veldmed.internal.render")

// ErrEmptyDocument indicates serialization produced zero bytes.
var ErrEmptyDocument = errors.New("render: serialized document is empty")

const (
	fallbackPageWidth  = 595.28 // A4 portrait, points
	fallbackPageHeight = 841.89

	contentTop      = 150 // below the pad letterhead
	continuationTop = 72  // reset position on overflow pages
	bottomReserve   = 150 // no Rx lines below this band
	lineHeight      = 18

	leftMargin       = 60
	narrowLeftMargin = 40 // pads narrower than 600pt
	narrowPageWidth  = 600

	fontFamily = "Helvetica"
	fontSize   = 11
)

// Renderer turns a prescription into PDF bytes resembling a prescription pad.
type Renderer struct {
	fetcher *TemplateFetcher
	logger  *logging.Logger
	now     func() time.Time
}

// NewRenderer builds a renderer. fetcher may be nil, in which case every
// document starts from a blank page.
func NewRenderer(fetcher *TemplateFetcher, logger *logging.Logger) *Renderer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Renderer{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Render produces the prescription PDF. Any error is fatal for the send; the
// pipeline never retries rendering.
func (r *Renderer) Render(ctx context.Context, p *prescription.Prescription) ([]byte, error) {
	ctx, span := renderTracer.Start(ctx, "render.prescription")
	defer span.End()
	span.SetAttributes(
		attribute.String("veldmed.prescription_number", p.PrescriptionNumber),
		attribute.Int("veldmed.medication_count", len(p.Medications)),
	)

	var template []byte
	if r.fetcher != nil {
		template = r.fetcher.Fetch(ctx)
	}

	d, err := newDoc(template, r.logger)
	if err != nil {
		return nil, err
	}

	cursor := d.layout(p, r.now)

	// Pin the metadata timestamp to the prescription date so identical input
	// yields identical bytes.
	d.pdf.SetCreationDate(p.Date(r.now))

	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: failed to serialize document: %w", err)
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyDocument
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		// The serializer can lead with line-ending bytes a naive header check
		// misreads, so this stays a warning rather than a hard failure.
		r.logger.Warn("rendered document does not start with %PDF signature", "bytes", buf.Len())
	}

	span.SetAttributes(
		attribute.Int("veldmed.document_bytes", buf.Len()),
		attribute.Int("veldmed.pages", cursor.Page),
	)
	return buf.Bytes(), nil
}

// doc wraps the PDF under construction with its resolved geometry.
type doc struct {
	pdf        *gofpdf.Fpdf
	pageWidth  float64
	pageHeight float64
	left       float64
	logger     *logging.Logger
}

func newDoc(template []byte, logger *logging.Logger) (*doc, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	width, height := fallbackPageWidth, fallbackPageHeight
	if len(template) > 0 {
		tplID, w, h, err := importTemplate(pdf, template)
		if err != nil {
			logger.Warn("template import failed, using blank page", "error", err)
			pdf.AddPage()
		} else {
			if w > 0 && h > 0 {
				width, height = w, h
			}
			pdf.AddPageFormat("P", gofpdf.SizeType{Wd: width, Ht: height})
			gofpdi.UseImportedTemplate(pdf, tplID, 0, 0, width, 0)
		}
	} else {
		pdf.AddPage()
	}

	left := float64(leftMargin)
	if width < narrowPageWidth {
		left = narrowLeftMargin
	}

	pdf.SetFont(fontFamily, "", fontSize)
	return &doc{
		pdf:        pdf,
		pageWidth:  width,
		pageHeight: height,
		left:       left,
		logger:     logger,
	}, nil
}

// importTemplate resolves page 1 of the template. gofpdi reports parse
// failures by panicking, so the call is fenced with a recover.
func importTemplate(pdf *gofpdf.Fpdf, template []byte) (tplID int, width, height float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render: template parse: %v", r)
		}
	}()

	rs := io.ReadSeeker(bytes.NewReader(template))
	tplID = gofpdi.ImportPageFromStream(pdf, &rs, 1, "/MediaBox")

	sizes := gofpdi.GetPageSizes()
	if box, ok := sizes[1]["/MediaBox"]; ok {
		width, height = box["w"], box["h"]
	}
	if pdf.Err() {
		return 0, 0, 0, fmt.Errorf("render: template import: %w", pdf.Error())
	}
	return tplID, width, height, nil
}

// layout emits all content and returns the final cursor (its Page field is
// the total page count).
func (d *doc) layout(p *prescription.Prescription, now func() time.Time) Cursor {
	c := Cursor{Y: contentTop, Page: 1}
	proseWidth := d.pageWidth - 120
	rxWidth := d.pageWidth - d.left - 60

	c = d.line(c, "Patient: "+p.PatientName)
	if p.PatientEmail != "" {
		c = d.line(c, "Email: "+p.PatientEmail)
	}
	if p.PatientIDNumber != "" {
		c = d.line(c, "ID No: "+p.PatientIDNumber)
	}
	if p.PrescriptionNumber != "" {
		c = d.line(c, "Prescription No: "+p.PrescriptionNumber)
	}
	if p.Diagnosis != "" {
		c = d.prose(c, "Diagnosis: "+p.Diagnosis, proseWidth)
	}
	if p.Notes != "" {
		c = d.prose(c, "Notes: "+p.Notes, proseWidth)
	}

	if len(p.Medications) > 0 {
		c = c.Advance(lineHeight)
		c = d.ensureRoom(c)
		c = d.line(c, "Rx:")
		for _, med := range p.Medications {
			c = d.medication(c, med, rxWidth)
		}
	}

	if p.DoctorName != "" {
		c = c.Advance(lineHeight)
		c = d.ensureRoom(c)
		c = d.line(c, "Dr "+p.DoctorName)
	}

	d.dateFooter(p.Date(now))
	return c
}

// line draws a single left-aligned line and advances the cursor.
func (d *doc) line(c Cursor, text string) Cursor {
	d.pdf.Text(d.left, c.Y, text)
	return c.Advance(lineHeight)
}

// prose word-wraps free text against the prose width.
func (d *doc) prose(c Cursor, text string, maxWidth float64) Cursor {
	for _, seg := range WrapText(text, maxWidth, d.measure) {
		c = d.ensureRoom(c)
		c = d.line(c, seg)
	}
	return c
}

// medication renders one Rx line. The quantity annotation rides on the last
// wrapped segment when it fits, otherwise it becomes its own right-aligned
// fragment.
func (d *doc) medication(c Cursor, med prescription.Medication, maxWidth float64) Cursor {
	line, quantity := med.DisplayLine()

	segs := WrapText(line, maxWidth, d.measure)
	if len(segs) == 0 {
		return c
	}
	if quantity != "" {
		last := segs[len(segs)-1]
		if d.measure(last+" "+quantity) <= maxWidth {
			segs[len(segs)-1] = last + " " + quantity
			quantity = ""
		}
	}

	for _, seg := range segs {
		c = d.ensureRoom(c)
		c = d.line(c, seg)
	}
	if quantity != "" {
		c = d.ensureRoom(c)
		d.pdf.Text(d.left+maxWidth-d.measure(quantity), c.Y, quantity)
		c = c.Advance(lineHeight)
	}
	return c
}

// ensureRoom starts a continuation page of the same dimensions when the
// cursor has entered the reserved bottom band.
func (d *doc) ensureRoom(c Cursor) Cursor {
	if !c.NeedsPage(d.pageHeight, bottomReserve) {
		return c
	}
	d.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: d.pageWidth, Ht: d.pageHeight})
	d.pdf.SetFont(fontFamily, "", fontSize)
	return c.NextPage(continuationTop)
}

// dateFooter draws the prescription date bottom-right in day month year form.
func (d *doc) dateFooter(date time.Time) {
	text := date.Format("2 January 2006")
	d.pdf.Text(d.pageWidth-60-d.measure(text), d.pageHeight-60, text)
}

func (d *doc) measure(s string) float64 {
	return d.pdf.GetStringWidth(s)
}
