package storage

import (
	"errors"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/auth"
)

// ErrPermissionDenied is returned when the caller may not read invoices.
var ErrPermissionDenied = errors.New("storage: permission denied")

// AuthorizeInvoiceDownload allows staff and admins, and system callers that opt in explicitly.
func AuthorizeInvoiceDownload(identity *auth.Identity, allowSystem bool) error {
	if allowSystem {
		return nil
	}
	if identity != nil && identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin) {
		return nil
	}
	return ErrPermissionDenied
}
