// Package export renders the task list for printing.
package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/amirbrooks/fivetask/internal/mood"
	"github.com/amirbrooks/fivetask/internal/store"
)

// WritePDF writes a one-page A4 sheet: mascot line, slot counter, then one
// row per task with a checkbox and stale marker.
func WritePDF(w io.Writer, snap store.Snapshot, notices mood.Notices) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("fivetask", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "fivetask", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "I", 11)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf("[%s] \"%s\"", snap.Mood, snap.Quote)), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Slots: %d / %d    Printed: %s", snap.Remaining, store.Capacity, snap.Now.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(snap.Tasks) == 0 {
		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, 7, tr(notices.Empty), "", "L", false)
	}
	for _, t := range snap.Tasks {
		box := "[ ]"
		if t.Completed {
			box = "[x]"
		}
		pdf.SetFont("Courier", "B", 12)
		pdf.CellFormat(12, 8, box, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		label := t.Text
		if snap.IsStale(t) {
			label += "  (" + notices.Stale + ")"
		}
		pdf.CellFormat(130, 8, tr(label), "B", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 8, t.CreatedAt.Format("2006-01-02 15:04"), "B", 1, "R", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}
