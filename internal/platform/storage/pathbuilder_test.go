package storage

import "testing"

func TestInvoiceObjectPathUsesOrderYear(t *testing.T) {
	got, err := InvoiceObjectPath("SP-2025-000042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "invoices/2025/SP-2025-000042.pdf" {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestInvoiceObjectPathFallsBackForUnknownFormat(t *testing.T) {
	got, err := InvoiceObjectPath("LEGACY42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "invoices/unsorted/LEGACY42.pdf" {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestInvoiceObjectPathRejectsTraversal(t *testing.T) {
	for _, number := range []string{"", "  ", "../etc", "SP/2025"} {
		if _, err := InvoiceObjectPath(number); err == nil {
			t.Errorf("expected error for %q", number)
		}
	}
}
