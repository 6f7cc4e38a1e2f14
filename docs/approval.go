/*
Package docs renders leave approval documents as PDF files.

PURPOSE:
  One generator: the approval slip handed to the employee once a leave
  record is committed. It carries the employee identity, the leave dates
  and day count, the return-to-work date, and for balance-deducting types
  the per-fiscal-year deduction breakdown.
*/
package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/atlas-hr/leave-engine/leave"
)

// Approval is everything the slip renders.
type Approval struct {
	Employee     *leave.Employee
	Record       *leave.LeaveRecord
	ReturnToWork time.Time
	// Breakdown maps fiscal year to days deducted; empty for types that do
	// not deduct balance.
	Breakdown map[int]decimal.Decimal
}

// Generator writes approval PDFs under a base directory.
type Generator struct {
	dir string
}

// NewGenerator creates the output directory if needed.
func NewGenerator(dir string) (*Generator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}
	return &Generator{dir: dir}, nil
}

// Generate renders the approval slip and returns the file path.
func (g *Generator) Generate(a Approval) (string, error) {
	path := filepath.Join(g.dir, a.Record.ID+".pdf")

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Leave Approval")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s (%s)", a.Employee.Name, a.Employee.RefCode))
	pdf.Ln(7)
	if a.Employee.Grade != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Grade: %s", a.Employee.Grade))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Type: %s", a.Record.Type))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s (%s days)",
		a.Record.Start.Format("2006-01-02"), a.Record.End.Format("2006-01-02"), a.Record.Days))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Return to work: %s", a.ReturnToWork.Format("2006-01-02")))
	pdf.Ln(10)

	if len(a.Breakdown) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Balance deduction")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 12)
		years := make([]int, 0, len(a.Breakdown))
		for y := range a.Breakdown {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			pdf.Cell(0, 8, fmt.Sprintf("  %d: %s days", y, a.Breakdown[y]))
			pdf.Ln(7)
		}
	}

	if a.Record.SubstituteID != "" {
		pdf.Ln(3)
		pdf.Cell(0, 8, fmt.Sprintf("Substitute: %s", a.Record.SubstituteID))
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write approval document: %w", err)
	}
	return path, nil
}
