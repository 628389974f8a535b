package normalizer

import (
	"testing"

	"github.com/bjo163/wablast/internal/domain"
)

func TestNormalize(t *testing.T) {
	n := New("62")

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"local zero form", "081234567890", "6281234567890", false},
		{"plus international", "+6281234567890", "6281234567890", false},
		{"already canonical", "6281234567890", "6281234567890", false},
		{"bare subscriber digits", "81234567890", "6281234567890", false},
		{"formatted input", "0812-3456-7890", "6281234567890", false},
		{"spaces and parens", "(0812) 3456 7890", "6281234567890", false},
		{"empty", "", "", true},
		{"only punctuation", "+-()", "", true},
		{"too short", "0812345", "", true},
		{"too long", "628123456789012345", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New("62")
	first, err := n.Normalize("0812-3456-7890")
	if err != nil {
		t.Fatal(err)
	}
	second, err := n.Normalize(first)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("normalization not idempotent: %q != %q", first, second)
	}
}

func TestNormalizeBatch(t *testing.T) {
	n := New("62")
	contacts := []domain.Contact{
		{Number: "081234567890", RecipientName: "Andi"},
		{Number: "", RecipientName: "Budi"},
		{Number: "081234567890", RecipientName: "Citra"},
		{Number: "12", RecipientName: "Dewi"},
	}

	accepted, rejected := n.NormalizeBatch(contacts)

	if len(accepted) != 2 {
		t.Fatalf("accepted = %d, want 2", len(accepted))
	}
	// duplicates survive, order preserved
	if accepted[0].Number != accepted[1].Number {
		t.Fatalf("duplicate contact was deduplicated: %q vs %q", accepted[0].Number, accepted[1].Number)
	}
	if accepted[0].RecipientName != "Andi" || accepted[1].RecipientName != "Citra" {
		t.Fatalf("batch order not preserved: %+v", accepted)
	}

	if len(rejected) != 2 {
		t.Fatalf("rejected = %d, want 2", len(rejected))
	}
	if rejected[0].Index != 1 || rejected[1].Index != 3 {
		t.Fatalf("rejected indexes wrong: %+v", rejected)
	}
	if rejected[0].Reason == "" {
		t.Fatal("rejection reason missing")
	}
}

func TestNormalizeCustomPrefix(t *testing.T) {
	n := New("60")
	got, err := n.Normalize("0123456789")
	if err != nil {
		t.Fatal(err)
	}
	if got != "60123456789" {
		t.Fatalf("got %q, want 60123456789", got)
	}
}
