package board

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// Export content types.
const (
	contentTypeCSV   = "text/csv"
	contentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeader = []string{
	"Title", "Description", "Status", "Priority", "Due Date", "Tags", "Created At", "Updated At",
}

// Export renders the caller's task listing as CSV or an Excel workbook.
func (s *BoardService) Export(ctx context.Context, req ExportTasksRequest) (*ExportTasksResponse, error) {
	views, err := s.List(ctx, ListTasksRequest{UserID: req.UserID, IsAdmin: req.IsAdmin})
	if err != nil {
		return nil, err
	}

	stamp := time.Now().Format("20060102_150405")

	switch req.Format {
	case ExportFormatCSV:
		data, err := renderCSV(views)
		if err != nil {
			return nil, err
		}
		return &ExportTasksResponse{
			FileName:    "tasks_" + stamp + ".csv",
			ContentType: contentTypeCSV,
			Data:        data,
		}, nil
	case ExportFormatExcel, "":
		data, err := renderExcel(views)
		if err != nil {
			return nil, err
		}
		return &ExportTasksResponse{
			FileName:    "tasks_" + stamp + ".xlsx",
			ContentType: contentTypeExcel,
			Data:        data,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", ErrValidation, req.Format)
	}
}

// exportRow flattens a task view into the export column order.
func exportRow(v TaskView) []string {
	dueDate := ""
	if v.DueDate != nil {
		dueDate = v.DueDate.Format("2006-01-02")
	}
	return []string{
		v.Title,
		v.Description,
		v.Status.String(),
		v.Priority.String(),
		dueDate,
		v.Tags,
		v.CreatedAt.Format("2006-01-02 15:04"),
		v.UpdatedAt.Format("2006-01-02 15:04"),
	}
}

// renderCSV writes the listing as UTF-8 CSV with a header row.
func renderCSV(views []TaskView) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, v := range views {
		if err := w.Write(exportRow(v)); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// renderExcel writes the listing as a single-sheet Excel workbook.
func renderExcel(views []TaskView) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to name header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for row, v := range views {
		for col, value := range exportRow(v) {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to name cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}
