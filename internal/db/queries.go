package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/promosignal/internal/metrics"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/store"
	"github.com/surrealdb/surrealdb.go"
)

var _ store.Backend = (*Client)(nil)

type payloadRow struct {
	Payload string `json:"payload"`
}

type employeeRow struct {
	EmployeeID int `json:"employee_id"`
}

// Put upserts the artifact record addressed by key.
func (c *Client) Put(ctx context.Context, key store.Key, data []byte) error {
	id, err := key.Path()
	if err != nil {
		return err
	}
	defer c.timeQuery()()

	_, err = surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("artifact", $id) CONTENT {
			kind: $kind,
			employee_id: $employee_id,
			cohort: $cohort,
			run_id: $run_id,
			payload: $payload,
			updated: time::now()
		}
	`, map[string]any{
		"id":          id,
		"kind":        string(key.Kind),
		"employee_id": key.EmployeeID,
		"cohort":      bool(key.Cohort),
		"run_id":      key.RunID,
		"payload":     string(data),
	})
	if err != nil {
		return fmt.Errorf("upsert artifact %s: %w", id, wrapQueryError(err))
	}
	return nil
}

// Get returns the payload stored under key, or store.ErrNotFound.
func (c *Client) Get(ctx context.Context, key store.Key) ([]byte, error) {
	id, err := key.Path()
	if err != nil {
		return nil, err
	}
	defer c.timeQuery()()

	results, err := surrealdb.Query[[]payloadRow](ctx, c.db,
		`SELECT payload FROM type::record("artifact", $id)`,
		map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", id, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return []byte((*results)[0].Result[0].Payload), nil
}

// ListClusters returns the employee IDs that have a cluster set in cohort.
func (c *Client) ListClusters(ctx context.Context, cohort models.Cohort) ([]int, error) {
	defer c.timeQuery()()

	results, err := surrealdb.Query[[]employeeRow](ctx, c.db, `
		SELECT employee_id FROM artifact
		WHERE kind = $kind AND cohort = $cohort
		ORDER BY employee_id
	`, map[string]any{
		"kind":   string(store.KindClusters),
		"cohort": bool(cohort),
	})
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	rows := (*results)[0].Result
	ids := make([]int, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.EmployeeID)
	}
	return ids, nil
}

func (c *Client) timeQuery() func() {
	start := time.Now()
	return func() {
		if c.metrics != nil {
			c.metrics.RecordTiming(metrics.OpDBQuery, time.Since(start))
		}
	}
}
