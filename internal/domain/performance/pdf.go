package performance

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderReportPDF lays out an employee report as a single A4 document.
func RenderReportPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Performance Report")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", report.EmployeeID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Department: %s", report.DepartmentID))
	pdf.Ln(10)
	pdf.Cell(0, 8, fmt.Sprintf("Average score: %.2f", report.AverageScore))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Last quarter: %.2f", report.Trends.LastQuarter))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Last year: %.2f", report.Trends.LastYear))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 11)
	for _, header := range []struct {
		title string
		width float64
	}{{"Date", 30}, {"Goals", 25}, {"Skills", 25}, {"Teamwork", 25}, {"Score", 25}} {
		pdf.CellFormat(header.width, 8, header.title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, entry := range report.Reviews {
		pdf.CellFormat(30, 7, entry.ReviewDate, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", entry.Metrics.GoalAchievement), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", entry.Metrics.SkillLevel), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", entry.Metrics.Teamwork), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", entry.OverallScore), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		if entry.Comments != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(130, 5, pdf.UnicodeTranslatorFromDescriptor("")(entry.Comments), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
