// internal/source/elasticsearch.go
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"retention-engine/internal/common/errors"
	"retention-engine/internal/common/logger"
	"retention-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchSource loads the population from an employee index.
type ElasticsearchSource struct {
	client  *elasticsearch.Client
	index   string
	maxSize int
	logger  logger.Logger
}

func NewElasticsearchSource(client *elasticsearch.Client, index string, maxSize int, log logger.Logger) *ElasticsearchSource {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &ElasticsearchSource{
		client:  client,
		index:   index,
		maxSize: maxSize,
		logger:  log.WithFields(map[string]interface{}{"source": "elasticsearch", "index": index}),
	}
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.EmployeeRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchSource) Load(ctx context.Context) ([]models.EmployeeRecord, error) {
	query := fmt.Sprintf(`{"size": %d, "query": {"match_all": {}}}`, s.maxSize)

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return nil, errors.NewPopulationLoadError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewPopulationLoadError(fmt.Errorf("elasticsearch search: %s", res.Status()))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewPopulationLoadError(fmt.Errorf("decode search response: %w", err))
	}

	out := make([]models.EmployeeRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		out = append(out, hit.Source)
	}

	s.logger.Info("population loaded", map[string]interface{}{"count": len(out)})
	return out, nil
}
