// internal/source/file.go
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"retention-engine/internal/common/errors"
	"retention-engine/internal/common/logger"
	"retention-engine/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// populationSchema validates a JSON population file before it reaches
// scoring. Numeric fields may still be absent or negative; the scorer
// defaults those, but records must at least be objects with an id.
const populationSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"name": {"type": "string"},
			"department": {"type": "string"},
			"riskLevel": {"type": "string"},
			"churnProbability": {"type": "number"},
			"salary": {"type": "number"},
			"tenureYears": {"type": "number"},
			"currentEltv": {"type": "number"}
		}
	}
}`

// FileSource loads the population from a JSON file, typically an export
// from the upstream HR system.
type FileSource struct {
	path   string
	logger logger.Logger
}

func NewFileSource(path string, log logger.Logger) *FileSource {
	return &FileSource{
		path:   path,
		logger: log.WithFields(map[string]interface{}{"source": "file", "path": path}),
	}
}

func (s *FileSource) Load(ctx context.Context) ([]models.EmployeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.NewPopulationLoadError(err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(populationSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, errors.NewPopulationLoadError(err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, errors.NewValidationError(fmt.Sprintf("population file invalid: %s", strings.Join(msgs, "; ")))
	}

	var out []models.EmployeeRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.NewPopulationLoadError(err)
	}

	s.logger.Info("population loaded", map[string]interface{}{"count": len(out)})
	return out, nil
}
