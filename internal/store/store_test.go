package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/sift/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

var itemColumnList = []string{
	"id", "source", "type", "title", "url", "published_at", "fetched_at", "body", "authors",
	"topics", "embedding", "cluster_id", "relevance_label", "relevance_confidence", "relevance_reason",
	"priority_score", "summary_headline", "summary_tldr", "summary_highlights", "summary_why_matters",
	"validation_status", "delivery_status",
}

func sampleRow(rows *sqlmock.Rows, id int64) *sqlmock.Rows {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, "arxiv", "paper", "A study of agents", "https://example.com/abs/1", now, now,
		"abstract text", []byte(`["Ada"]`),
		[]byte(`["Agent"]`), []byte(`[0.1,0.2]`), "cluster-1",
		"AGENTIC_AI", 0.9, "on topic",
		1.05, "Agents everywhere", "Short take", []byte(`["h1"]`), "because",
		"PASS", "PENDING",
	)
}

func TestInsertItemCreated(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO content_items`).
		WithArgs("arxiv", "paper", "Title", "https://example.com/1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "body", []byte(`[]`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, created, err := st.InsertItem(context.Background(), models.ContentItem{
		Source: "arxiv", Type: "paper", Title: "Title",
		URL: "https://example.com/1", PublishedAt: time.Now(), Body: "body",
	})
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	if !created || id != 42 {
		t.Fatalf("expected created id 42, got id=%d created=%v", id, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertItemDuplicateURL(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO content_items`).
		WillReturnError(sql.ErrNoRows)

	_, created, err := st.InsertItem(context.Background(), models.ContentItem{
		Source: "arxiv", Type: "paper", Title: "Title", URL: "https://example.com/dup",
	})
	if err != nil {
		t.Fatalf("duplicate must not be an error: %v", err)
	}
	if created {
		t.Fatal("duplicate URL must report created=false")
	}
}

func TestInsertItemValidation(t *testing.T) {
	st, _ := newMockStore(t)
	if _, _, err := st.InsertItem(context.Background(), models.ContentItem{Title: "no url"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, _, err := st.InsertItem(context.Background(), models.ContentItem{URL: "https://x"}); err == nil {
		t.Fatal("expected error for missing title")
	}
}

func TestGetItemNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .+ FROM content_items WHERE id=\$1`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := st.GetItem(context.Background(), 99)
	if !errors.Is(err, models.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestGetItemScans(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .+ FROM content_items WHERE id=\$1`).
		WithArgs(int64(1)).
		WillReturnRows(sampleRow(sqlmock.NewRows(itemColumnList), 1))

	it, err := st.GetItem(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if it.RelevanceLabel != "AGENTIC_AI" || it.PriorityScore != 1.05 {
		t.Fatalf("unexpected item: %+v", it)
	}
	if len(it.Authors) != 1 || it.Authors[0] != "Ada" {
		t.Fatalf("authors not decoded: %v", it.Authors)
	}
	if len(it.Embedding) != 2 || it.ClusterID != "cluster-1" {
		t.Fatalf("enrichment fields not decoded: %+v", it)
	}
	if it.ValidationStatus != models.ValidationPass || it.DeliveryStatus != models.DeliveryPending {
		t.Fatalf("status fields not decoded: %+v", it)
	}
}

func TestListItemsUnknownFilter(t *testing.T) {
	st, _ := newMockStore(t)
	if _, err := st.ListItems(context.Background(), "bogus", 10); err == nil {
		t.Fatal("expected error for unknown filter")
	}
}

func TestSetRelevanceMissingItem(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE content_items SET relevance_label`).
		WithArgs(int64(5), "AGENTIC_AI", 0.8, "reason").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.SetRelevance(context.Background(), 5, "AGENTIC_AI", 0.8, "reason")
	if !errors.Is(err, models.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound on zero rows, got %v", err)
	}
}

func TestSetValidationRejectsPending(t *testing.T) {
	st, _ := newMockStore(t)
	if err := st.SetValidation(context.Background(), 1, models.ValidationPending); err == nil {
		t.Fatal("PENDING is not a terminal gate status")
	}
}

func TestMarkSent(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE content_items SET delivery_status='SENT' WHERE id IN \(\$1,\$2,\$3\)`).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := st.MarkSent(context.Background(), []int64{1, 2, 3}); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkSentEmpty(t *testing.T) {
	st, mock := newMockStore(t)
	if err := st.MarkSent(context.Background(), nil); err != nil {
		t.Fatalf("MarkSent(nil): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statement expected: %v", err)
	}
}

func TestStats(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT\s+COUNT`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "relevant", "synthesized", "delivered"}).
			AddRow(10, 3, 5, 2, 1))

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 10 || stats.PendingRelevance != 3 || stats.Relevant != 5 || stats.Synthesized != 2 || stats.Delivered != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestUpsertRecipient(t *testing.T) {
	st, mock := newMockStore(t)
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO recipients`).
		WithArgs("+15551234567").
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone", "opt_in", "created_at"}).
			AddRow(int64(1), "+15551234567", true, created))

	r, err := st.UpsertRecipient(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("UpsertRecipient: %v", err)
	}
	if !r.OptIn || r.Phone != "+15551234567" {
		t.Fatalf("unexpected recipient: %+v", r)
	}
}

func TestListDeliverable(t *testing.T) {
	st, mock := newMockStore(t)
	rows := sqlmock.NewRows(itemColumnList)
	sampleRow(rows, 1)
	sampleRow(rows, 2)
	mock.ExpectQuery(`WHERE validation_status='PASS' AND delivery_status='PENDING'`).
		WillReturnRows(rows)

	items, err := st.ListDeliverable(context.Background())
	if err != nil {
		t.Fatalf("ListDeliverable: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestLatestRunTimeNoRuns(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT MAX\(started_at\) FROM pipeline_runs`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	ts, err := st.LatestRunTime(context.Background())
	if err != nil {
		t.Fatalf("LatestRunTime: %v", err)
	}
	if ts != nil {
		t.Fatalf("expected nil for no runs, got %v", ts)
	}
}
