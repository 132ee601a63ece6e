// internal/source/postgres.go
package source

import (
	"context"
	"database/sql"

	"retention-engine/internal/common/errors"
	"retention-engine/internal/common/logger"
	"retention-engine/internal/models"
)

const defaultEmployeeQuery = `
	SELECT id, name, department, risk_level,
	       churn_probability, salary, tenure_years, current_eltv
	FROM employees`

// PostgresSource loads the population from the employees table.
type PostgresSource struct {
	db     *sql.DB
	query  string
	logger logger.Logger
}

func NewPostgresSource(db *sql.DB, log logger.Logger) *PostgresSource {
	return &PostgresSource{
		db:     db,
		query:  defaultEmployeeQuery,
		logger: log.WithFields(map[string]interface{}{"source": "postgres"}),
	}
}

func (s *PostgresSource) Load(ctx context.Context) ([]models.EmployeeRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, errors.NewPopulationLoadError(err)
	}
	defer rows.Close()

	var out []models.EmployeeRecord
	for rows.Next() {
		var (
			e         models.EmployeeRecord
			riskLevel sql.NullString
			name      sql.NullString
			dept      sql.NullString
		)
		if err := rows.Scan(&e.ID, &name, &dept, &riskLevel,
			&e.ChurnProbability, &e.Salary, &e.TenureYears, &e.CurrentELTV); err != nil {
			return nil, errors.NewPopulationLoadError(err)
		}
		e.Name = name.String
		e.Department = dept.String
		e.RiskLevel = models.RiskLevel(riskLevel.String)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPopulationLoadError(err)
	}

	s.logger.Info("population loaded", map[string]interface{}{"count": len(out)})
	return out, nil
}
