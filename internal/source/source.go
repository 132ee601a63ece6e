// internal/source/source.go
// Package source loads the raw employee population the engine scores.
package source

import (
	"context"

	"retention-engine/internal/models"
)

// Source provides one employee population snapshot per analysis pass.
type Source interface {
	Load(ctx context.Context) ([]models.EmployeeRecord, error)
}
