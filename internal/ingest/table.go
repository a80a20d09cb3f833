package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/sachiverma0/policychat/internal/models"
)

// ReadTable parses an uploaded spreadsheet into a header row and data rows.
// The format is chosen by file extension; only .csv and .xlsx are supported.
func ReadTable(filename string, r io.Reader) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return readCSV(r)
	case ".xlsx":
		return readXLSX(r)
	default:
		return nil, nil, fmt.Errorf("only .csv or .xlsx files supported")
	}
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func readXLSX(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse xlsx: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}

// DocumentsFromTable converts spreadsheet rows into documents, generating the
// fields the store requires when the sheet does not carry them:
//
//   - a missing or blank id column yields a generated UUID
//   - userId must come from the row or from defaultUserID, otherwise the whole
//     batch is rejected
//   - a missing title becomes "Record <id>"
//   - missing content becomes a "column: value" listing of every non-empty
//     cell except userId
func DocumentsFromTable(header []string, rows [][]string, defaultUserID string) ([]models.Document, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	cell := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}

		id := cell(row, "id")
		if id == "" {
			id = uuid.New().String()
		}

		userID := cell(row, "userId")
		if userID == "" {
			userID = defaultUserID
		}
		if userID == "" {
			return nil, fmt.Errorf(
				"row with auto-id %q missing 'userId'; add a userId column or pass a default userId with the upload",
				id,
			)
		}

		title := cell(row, "title")
		if title == "" {
			title = fmt.Sprintf("Record %s", id)
		}

		content := cell(row, "content")
		if content == "" {
			var lines []string
			for i, name := range header {
				name = strings.TrimSpace(name)
				if name == "userId" || i >= len(row) {
					continue
				}
				if v := strings.TrimSpace(row[i]); v != "" {
					lines = append(lines, fmt.Sprintf("%s: %s", name, v))
				}
			}
			content = strings.Join(lines, "\n")
		}

		docs = append(docs, models.Document{
			ID:      id,
			UserID:  userID,
			Title:   title,
			Content: content,
		})
	}

	return docs, nil
}
