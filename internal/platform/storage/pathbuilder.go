package storage

import (
	"fmt"
	"strings"
)

const unsortedInvoiceFolder = "unsorted"

// InvoiceObjectPath places invoices under invoices/<year>/<order number>.pdf. The year comes from
// the order number (PREFIX-YYYY-NNNNNN) so the path can be rebuilt from the number alone.
func InvoiceObjectPath(orderNumber string) (string, error) {
	number, err := validateSegment("orderNumber", orderNumber)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("invoices/%s/%s.pdf", invoiceYear(number), number), nil
}

func invoiceYear(number string) string {
	parts := strings.Split(number, "-")
	if len(parts) < 3 {
		return unsortedInvoiceFolder
	}
	year := parts[1]
	if len(year) != 4 {
		return unsortedInvoiceFolder
	}
	for _, r := range year {
		if r < '0' || r > '9' {
			return unsortedInvoiceFolder
		}
	}
	return year
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
