package document

import (
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// Document carries the fields painted onto a certificate artifact.
type Document struct {
	ID          string
	Student     string
	Course      string
	Institution string
	IssueDate   time.Time
}

// Renderer paints a certificate document. Implementations must be safe for
// concurrent use.
type Renderer interface {
	Render(w io.Writer, doc Document) error
}

// PDFRenderer produces the fixed-layout landscape certificate page.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

// Render writes an A4 landscape certificate. Stream compression stays off so
// the text layer remains searchable; verifiers scan artifacts for the
// identifier.
func (r *PDFRenderer) Render(w io.Writer, doc Document) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()

	// Background wash.
	pdf.SetFillColor(230, 242, 255)
	pdf.Rect(0, 0, pageW, pageH, "F")

	// Border.
	pdf.SetDrawColor(0, 0, 139)
	pdf.SetLineWidth(1.4)
	pdf.Rect(15, 15, pageW-30, pageH-30, "D")

	centered := func(y, h float64, text string) {
		pdf.SetY(y)
		pdf.CellFormat(0, h, text, "", 1, "C", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 40)
	pdf.SetTextColor(0, 0, 139)
	centered(32, 16, "Certificate of Completion")

	pdf.SetFont("Helvetica", "I", 18)
	pdf.SetTextColor(0, 0, 0)
	centered(52, 8, "Blockchain Certificates - Secure. Transparent. Immutable.")

	pdf.SetFont("Helvetica", "", 20)
	pdf.SetTextColor(90, 90, 90)
	centered(76, 9, "This is proudly presented to")

	pdf.SetFont("Helvetica", "B", 36)
	pdf.SetTextColor(100, 149, 237)
	centered(92, 14, doc.Student)

	pdf.SetFont("Helvetica", "", 20)
	pdf.SetTextColor(0, 0, 0)
	centered(116, 9, "For successfully completing the course:")

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(0, 0, 139)
	centered(129, 10, doc.Course)

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(0, 128, 0)
	centered(152, 9, "Issued by: "+doc.Institution)

	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(0, 0, 0)
	centered(168, 6, "Certificate ID: "+doc.ID)
	centered(175, 6, "Issue Date: "+doc.IssueDate.Format("2006-01-02 15:04:05"))

	pdf.SetFont("Helvetica", "I", 12)
	pdf.SetTextColor(128, 128, 128)
	centered(190, 5, "This certificate is recorded on an Ethereum-compatible blockchain.")

	return pdf.Output(w)
}
