// Package importer turns uploaded contact files into blast contacts.
// Column layout follows the dashboard convention: A number, B message,
// C recipient name, D additional message.
package importer

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/bjo163/wablast/internal/domain"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

type csvRow struct {
	Number            string `csv:"number"`
	Message           string `csv:"message"`
	RecipientName     string `csv:"name"`
	AdditionalMessage string `csv:"additional_message"`
}

// ParseContacts reads an .xlsx or .csv upload into contacts. Rows without
// a number column are skipped here; full validation is the normalizer's
// job.
func ParseContacts(filename string, r io.Reader) ([]domain.Contact, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return parseXlsx(r)
	case ".csv":
		return parseCsv(r)
	default:
		return nil, domain.NewValidationError("file", "unsupported file type, expected .xlsx or .csv")
	}
}

func parseXlsx(r io.Reader) ([]domain.Contact, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open xlsx")
	}

	sheet := f.GetSheetName(1)
	if sheet == "" {
		return nil, domain.NewValidationError("file", "workbook has no sheets")
	}

	var contacts []domain.Contact
	for i, row := range f.GetRows(sheet) {
		if len(row) == 0 {
			continue
		}
		number := strings.TrimSpace(cell(row, 0))
		if number == "" {
			continue
		}
		// tolerate a header row
		if i == 0 && !hasDigit(number) {
			continue
		}
		contacts = append(contacts, domain.Contact{
			Number:            number,
			ExtraMessage:      strings.TrimSpace(cell(row, 1)),
			RecipientName:     strings.TrimSpace(cell(row, 2)),
			AdditionalMessage: strings.TrimSpace(cell(row, 3)),
		})
	}
	return contacts, nil
}

func parseCsv(r io.Reader) ([]domain.Contact, error) {
	var rows []csvRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}

	var contacts []domain.Contact
	for _, row := range rows {
		number := strings.TrimSpace(row.Number)
		if number == "" {
			continue
		}
		contacts = append(contacts, domain.Contact{
			Number:            number,
			ExtraMessage:      strings.TrimSpace(row.Message),
			RecipientName:     strings.TrimSpace(row.RecipientName),
			AdditionalMessage: strings.TrimSpace(row.AdditionalMessage),
		})
	}
	return contacts, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
