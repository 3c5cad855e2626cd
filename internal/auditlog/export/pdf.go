// Package export renders audit reports for auditors.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"compliance/pkg/platform/audit"
)

// ContentTypePDF is the media type written by RenderPDF.
const ContentTypePDF = "application/pdf"

const (
	timeLayout = "2006-01-02 15:04:05 MST"
	maxRows    = 500
)

// RenderPDF writes report as a single A4 document: a summary block, the
// per-action and per-subject counts, and the entries newest first. Entries
// beyond maxRows are counted but not listed.
func RenderPDF(w io.Writer, report audit.Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Audit report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Audit report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	line(pdf, fmt.Sprintf("Window: %s to %s", report.Start.UTC().Format(timeLayout), report.End.UTC().Format(timeLayout)))
	line(pdf, fmt.Sprintf("Total entries: %d", report.TotalEntries))
	line(pdf, fmt.Sprintf("GDPR requests: %d", report.GDPRRequests))
	line(pdf, fmt.Sprintf("SOX activities: %d", report.SOXActivities))
	line(pdf, fmt.Sprintf("Security events: %d", report.SecurityEvents))
	line(pdf, fmt.Sprintf("Compliance violations: %d", report.ComplianceViolations))
	pdf.Ln(4)

	section(pdf, "Entries by action")
	actions := make([]string, 0, len(report.EntriesByAction))
	for a := range report.EntriesByAction {
		actions = append(actions, string(a))
	}
	sort.Strings(actions)
	for _, a := range actions {
		line(pdf, fmt.Sprintf("%s: %d", a, report.EntriesByAction[audit.Action(a)]))
	}
	pdf.Ln(4)

	section(pdf, "Entries by data subject")
	subjects := make([]string, 0, len(report.EntriesByDataSubject))
	for s := range report.EntriesByDataSubject {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	for _, s := range subjects {
		line(pdf, fmt.Sprintf("%s: %d", s, report.EntriesByDataSubject[s]))
	}
	pdf.Ln(4)

	section(pdf, "Entries")
	pdf.SetFont("Helvetica", "B", 9)
	for _, h := range []struct {
		title string
		width float64
	}{{"Seq", 15}, {"Timestamp", 50}, {"Action", 55}, {"Data subject", 70}} {
		pdf.CellFormat(h.width, 6, h.title, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for i, e := range report.Entries {
		if i == maxRows {
			pdf.Ln(2)
			line(pdf, fmt.Sprintf("%d further entries omitted", len(report.Entries)-maxRows))
			break
		}
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", e.Seq), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, e.Timestamp.UTC().Format(timeLayout), "1", 0, "L", false, 0, "")
		pdf.CellFormat(55, 6, string(e.Action), "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, truncate(e.DataSubjectID, 40), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	line(pdf, "Generated "+time.Now().UTC().Format(timeLayout))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render audit report pdf: %w", err)
	}
	return nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
}

func line(pdf *gofpdf.Fpdf, text string) {
	pdf.Cell(0, 6, text)
	pdf.Ln(6)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
