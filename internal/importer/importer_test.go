package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/360EntSecGroup-Skylar/excelize"
)

func TestParseCsv(t *testing.T) {
	data := strings.Join([]string{
		"number,message,name,additional_message",
		"081234567890,Halo dari csv,Andi,promo juni",
		"6281298765432,,Budi,",
		",skip me,Nobody,",
	}, "\n")

	contacts, err := ParseContacts("contacts.csv", strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 2 {
		t.Fatalf("contacts = %d, want 2", len(contacts))
	}
	if contacts[0].Number != "081234567890" || contacts[0].RecipientName != "Andi" {
		t.Fatalf("row 0 = %+v", contacts[0])
	}
	if contacts[0].ExtraMessage != "Halo dari csv" || contacts[0].AdditionalMessage != "promo juni" {
		t.Fatalf("row 0 messages = %+v", contacts[0])
	}
	if contacts[1].Number != "6281298765432" {
		t.Fatalf("row 1 = %+v", contacts[1])
	}
}

func TestParseXlsx(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(1)
	f.SetCellValue(sheet, "A1", "Nomor")
	f.SetCellValue(sheet, "B1", "Pesan")
	f.SetCellValue(sheet, "C1", "Nama")
	f.SetCellValue(sheet, "A2", "081234567890")
	f.SetCellValue(sheet, "B2", "Halo dari excel")
	f.SetCellValue(sheet, "C2", "Citra")
	f.SetCellValue(sheet, "D2", "tambahan")
	f.SetCellValue(sheet, "A3", "6281211112222")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	contacts, err := ParseContacts("contacts.xlsx", &buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 2 {
		t.Fatalf("contacts = %d, want 2", len(contacts))
	}
	if contacts[0].Number != "081234567890" || contacts[0].RecipientName != "Citra" {
		t.Fatalf("row 0 = %+v", contacts[0])
	}
	if contacts[0].AdditionalMessage != "tambahan" {
		t.Fatalf("row 0 additional = %q", contacts[0].AdditionalMessage)
	}
	if contacts[1].Number != "6281211112222" {
		t.Fatalf("row 1 = %+v", contacts[1])
	}
}

func TestParseUnsupportedExtension(t *testing.T) {
	if _, err := ParseContacts("contacts.pdf", strings.NewReader("x")); err == nil {
		t.Fatal("pdf upload must be rejected")
	}
}
