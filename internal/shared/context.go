package shared

import (
	"context"

	"github.com/google/uuid"
)

// EmployeeHeader names the employee performing the request. Authentication is
// handled in front of this service; the header is trusted as given.
const EmployeeHeader = "X-Employee-ID"

type employeeContextKey struct{}

// ContextWithEmployee stores the acting employee in context.
func ContextWithEmployee(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, employeeContextKey{}, id)
}

// EmployeeFromContext extracts the acting employee, uuid.Nil when absent.
func EmployeeFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(employeeContextKey{}).(uuid.UUID)
	return id
}
