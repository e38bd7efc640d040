package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aquawatch/internal/config"
	"aquawatch/internal/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// EvaluationEntry is one audit record of a reading's evaluation: the
// detection verdict, rule hits and timing, indexed for later search.
type EvaluationEntry struct {
	PondID       uint32    `json:"pond_id"`
	PondName     string    `json:"pond_name"`
	ReadingID    uint32    `json:"reading_id"`
	IsAnomaly    bool      `json:"is_anomaly"`
	AnomalyScore float64   `json:"anomaly_score"`
	ChangePoints []string  `json:"change_points,omitempty"`
	RuleAlerts   int       `json:"rule_alerts"`
	DurationMS   int64     `json:"duration_ms"`
	Message      string    `json:"message,omitempty"`
	Timestamp    time.Time `json:"@timestamp"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type Client struct {
	es        *elasticsearch.Client
	config    config.ElasticsearchConfig
	indexName string
}

func NewClient(cfg config.ElasticsearchConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	esConfig := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	es, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned error: %s", res.String())
	}

	// Daily rolling index.
	indexName := fmt.Sprintf("%s-%s", cfg.IndexPrefix, time.Now().Format("2006.01.02"))

	client := &Client{
		es:        es,
		config:    cfg,
		indexName: indexName,
	}

	logger.Log.Info("Elasticsearch client initialized successfully")
	logger.Log.Debug(fmt.Sprintf("ES addresses: %v", cfg.Addresses))

	return client, nil
}

// IndexEvaluation writes one evaluation record. Safe to call on a nil
// client; indexing is then a no-op.
func (c *Client) IndexEvaluation(entry *EvaluationEntry) error {
	if c == nil || c.es == nil {
		return nil
	}

	c.indexName = fmt.Sprintf("%s-%s", c.config.IndexPrefix, time.Now().Format("2006.01.02"))

	entry.Timestamp = time.Now().UTC()

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation entry: %w", err)
	}

	req := esapi.IndexRequest{
		Index:   c.indexName,
		Body:    bytes.NewReader(body),
		Refresh: "false",
	}

	res, err := req.Do(context.Background(), c.es)
	if err != nil {
		return fmt.Errorf("failed to index evaluation: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch indexing error: %s", res.String())
	}

	logger.Log.Debug(fmt.Sprintf("Evaluation indexed to ES: index=%s, pond_id=%d, anomaly=%t",
		c.indexName, entry.PondID, entry.IsAnomaly))

	return nil
}

type SearchQuery struct {
	PondID    *uint32    `json:"pond_id,omitempty"`
	Anomalies bool       `json:"anomalies,omitempty"` // only anomalous evaluations
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Size      int        `json:"size,omitempty"`
	From      int        `json:"from,omitempty"`
	QueryText string     `json:"query_text,omitempty"`
}

type SearchResult struct {
	Total int64             `json:"total"`
	Hits  []EvaluationEntry `json:"hits"`
}

// SearchEvaluations queries the audit index.
func (c *Client) SearchEvaluations(query *SearchQuery) (*SearchResult, error) {
	if c == nil || c.es == nil {
		return &SearchResult{Total: 0, Hits: []EvaluationEntry{}}, nil
	}

	boolQuery := map[string]interface{}{
		"bool": map[string]interface{}{
			"must": []map[string]interface{}{},
		},
	}

	mustQueries := boolQuery["bool"].(map[string]interface{})["must"].([]map[string]interface{})

	if query.PondID != nil {
		mustQueries = append(mustQueries, map[string]interface{}{
			"term": map[string]interface{}{
				"pond_id": *query.PondID,
			},
		})
	}

	if query.Anomalies {
		mustQueries = append(mustQueries, map[string]interface{}{
			"term": map[string]interface{}{
				"is_anomaly": true,
			},
		})
	}

	if query.StartTime != nil || query.EndTime != nil {
		rangeQuery := map[string]interface{}{}
		if query.StartTime != nil {
			rangeQuery["gte"] = query.StartTime.Format(time.RFC3339)
		}
		if query.EndTime != nil {
			rangeQuery["lte"] = query.EndTime.Format(time.RFC3339)
		}
		mustQueries = append(mustQueries, map[string]interface{}{
			"range": map[string]interface{}{
				"@timestamp": rangeQuery,
			},
		})
	}

	if query.QueryText != "" {
		mustQueries = append(mustQueries, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query.QueryText,
				"fields": []string{"message", "pond_name", "change_points"},
			},
		})
	}

	boolQuery["bool"].(map[string]interface{})["must"] = mustQueries

	if query.Size <= 0 {
		query.Size = 20
	}
	if query.Size > 100 {
		query.Size = 100
	}

	searchBody := map[string]interface{}{
		"query": boolQuery,
		"size":  query.Size,
		"from":  query.From,
		"sort": []map[string]interface{}{
			{"@timestamp": map[string]interface{}{"order": "desc"}},
		},
	}

	body, err := json.Marshal(searchBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	indexPattern := fmt.Sprintf("%s-*", c.config.IndexPrefix)
	req := esapi.SearchRequest{
		Index: []string{indexPattern},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(context.Background(), c.es)
	if err != nil {
		return nil, fmt.Errorf("failed to search evaluations: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source EvaluationEntry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	result := &SearchResult{
		Total: response.Hits.Total.Value,
		Hits:  make([]EvaluationEntry, 0, len(response.Hits.Hits)),
	}

	for _, hit := range response.Hits.Hits {
		result.Hits = append(result.Hits, hit.Source)
	}

	return result, nil
}

// CreateIndexTemplate installs the index template if missing.
func (c *Client) CreateIndexTemplate() error {
	if c == nil || c.es == nil {
		return nil
	}

	templateName := fmt.Sprintf("%s-template", c.config.IndexPrefix)

	template := map[string]interface{}{
		"index_patterns": []string{fmt.Sprintf("%s-*", c.config.IndexPrefix)},
		"template": map[string]interface{}{
			"settings": map[string]interface{}{
				"number_of_shards":   1,
				"number_of_replicas": 1,
				"refresh_interval":   "5s",
			},
			"mappings": map[string]interface{}{
				"properties": map[string]interface{}{
					"pond_id":       map[string]string{"type": "integer"},
					"pond_name":     map[string]string{"type": "keyword"},
					"reading_id":    map[string]string{"type": "integer"},
					"is_anomaly":    map[string]string{"type": "boolean"},
					"anomaly_score": map[string]string{"type": "float"},
					"change_points": map[string]string{"type": "keyword"},
					"rule_alerts":   map[string]string{"type": "integer"},
					"duration_ms":   map[string]string{"type": "long"},
					"message":       map[string]string{"type": "text"},
					"@timestamp":    map[string]string{"type": "date"},
					"metadata":      map[string]string{"type": "object"},
				},
			},
		},
	}

	body, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal index template: %w", err)
	}

	req := esapi.IndicesPutIndexTemplateRequest{
		Name: templateName,
		Body: bytes.NewReader(body),
	}

	res, err := req.Do(context.Background(), c.es)
	if err != nil {
		return fmt.Errorf("failed to create index template: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		logger.Log.Warn(fmt.Sprintf("Failed to create index template: %s", res.String()))
	} else {
		logger.Log.Info(fmt.Sprintf("Index template created: %s", templateName))
	}

	return nil
}
