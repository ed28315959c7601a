package warehouse

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// BigQuery is a BigQuery implementation of Warehouse. Events land in a
// single table keyed by the pseudonymized user_key column.
type BigQuery struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQuery creates a new BigQuery warehouse client.
func NewBigQuery(ctx context.Context, projectID, dataset, table string) (*BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	return &BigQuery{client: client, dataset: dataset, table: table}, nil
}

// Close closes the underlying client.
func (w *BigQuery) Close() error {
	return w.client.Close()
}

// DeleteRows deletes the rows keyed by the pseudonymized id.
func (w *BigQuery) DeleteRows(ctx context.Context, pseudonymID string) (int64, error) {
	q := w.client.Query(fmt.Sprintf(
		"DELETE FROM `%s.%s` WHERE user_key = @user_key", w.dataset, w.table,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_key", Value: pseudonymID}}

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run warehouse delete: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait warehouse delete: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("warehouse delete failed: %w", err)
	}

	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return stats.NumDMLAffectedRows, nil
	}
	return 0, nil
}

// CountRows counts the rows remaining for the pseudonymized id.
func (w *BigQuery) CountRows(ctx context.Context, pseudonymID string) (int64, error) {
	q := w.client.Query(fmt.Sprintf(
		"SELECT COUNT(*) FROM `%s.%s` WHERE user_key = @user_key", w.dataset, w.table,
	))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_key", Value: pseudonymID}}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("run warehouse count: %w", err)
	}

	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("read warehouse count: %w", err)
	}
	count, ok := row[0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected count type %T", row[0])
	}
	return count, nil
}

// Ensure BigQuery implements Warehouse.
var _ Warehouse = (*BigQuery)(nil)
