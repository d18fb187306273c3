package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/sift/models"
)

// Store is the single source of truth every pipeline stage reads and
// writes. All stage preconditions are expressed as SQL filters here so
// re-running a stage only ever selects still-eligible items.
type Store struct {
	DB *sql.DB
}

// Run statuses persisted for pipeline invocations.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// ClusterCandidate is the slice of an item the clustering window needs.
type ClusterCandidate struct {
	ID        int64
	Title     string
	URL       string
	ClusterID string
}

// PipelineRun records one orchestrator invocation.
type PipelineRun struct {
	ID         int64
	Trigger    string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Stats are the dashboard counters exposed by the read-only viewer.
type Stats struct {
	Total            int `json:"total"`
	PendingRelevance int `json:"pending_relevance"`
	Relevant         int `json:"relevant"`
	Synthesized      int `json:"synthesized"`
	Delivered        int `json:"delivered"`
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

const itemColumns = `id, source, type, title, url, published_at, fetched_at, body, authors,
topics, embedding, cluster_id, relevance_label, relevance_confidence, relevance_reason,
priority_score, summary_headline, summary_tldr, summary_highlights, summary_why_matters,
validation_status, delivery_status`

func scanItem(scanner interface{ Scan(...interface{}) error }) (models.ContentItem, error) {
	var (
		it          models.ContentItem
		authors     []byte
		topics      []byte
		embedding   []byte
		clusterID   sql.NullString
		label       sql.NullString
		confidence  sql.NullFloat64
		reason      sql.NullString
		headline    sql.NullString
		tldr        sql.NullString
		highlights  []byte
		whyMatters  sql.NullString
		validStatus string
		delivStatus string
	)
	if err := scanner.Scan(&it.ID, &it.Source, &it.Type, &it.Title, &it.URL, &it.PublishedAt,
		&it.FetchedAt, &it.Body, &authors, &topics, &embedding, &clusterID, &label,
		&confidence, &reason, &it.PriorityScore, &headline, &tldr, &highlights,
		&whyMatters, &validStatus, &delivStatus); err != nil {
		return models.ContentItem{}, err
	}
	if len(authors) > 0 {
		if err := json.Unmarshal(authors, &it.Authors); err != nil {
			return models.ContentItem{}, fmt.Errorf("decode authors: %w", err)
		}
	}
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &it.Topics); err != nil {
			return models.ContentItem{}, fmt.Errorf("decode topics: %w", err)
		}
	}
	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &it.Embedding); err != nil {
			return models.ContentItem{}, fmt.Errorf("decode embedding: %w", err)
		}
	}
	if len(highlights) > 0 {
		if err := json.Unmarshal(highlights, &it.SummaryHighlights); err != nil {
			return models.ContentItem{}, fmt.Errorf("decode highlights: %w", err)
		}
	}
	if clusterID.Valid {
		it.ClusterID = clusterID.String
	}
	if label.Valid {
		it.RelevanceLabel = label.String
	}
	if confidence.Valid {
		it.RelevanceConfidence = confidence.Float64
	}
	if reason.Valid {
		it.RelevanceReason = reason.String
	}
	if headline.Valid {
		it.SummaryHeadline = headline.String
	}
	if tldr.Valid {
		it.SummaryTLDR = tldr.String
	}
	if whyMatters.Valid {
		it.SummaryWhyMatters = whyMatters.String
	}
	it.ValidationStatus = models.ValidationStatus(validStatus)
	it.DeliveryStatus = models.DeliveryStatus(delivStatus)
	return it, nil
}

func (s *Store) queryItems(ctx context.Context, query string, args ...interface{}) ([]models.ContentItem, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ContentItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// InsertItem stores a newly acquired item unless its URL is already
// known. Returns false when the URL was a duplicate.
func (s *Store) InsertItem(ctx context.Context, it models.ContentItem) (int64, bool, error) {
	if strings.TrimSpace(it.URL) == "" {
		return 0, false, fmt.Errorf("item url required")
	}
	if strings.TrimSpace(it.Title) == "" {
		return 0, false, fmt.Errorf("item title required")
	}
	authors, err := json.Marshal(emptyIfNil(it.Authors))
	if err != nil {
		return 0, false, fmt.Errorf("encode authors: %w", err)
	}
	fetched := it.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now().UTC()
	}
	var id int64
	err = s.DB.QueryRowContext(ctx, `
INSERT INTO content_items (source, type, title, url, published_at, fetched_at, body, authors)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (url) DO NOTHING
RETURNING id
`, it.Source, it.Type, it.Title, it.URL, it.PublishedAt.UTC(), fetched, it.Body, authors).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// GetItem fetches a single item by id.
func (s *Store) GetItem(ctx context.Context, id int64) (models.ContentItem, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_items WHERE id=$1`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ContentItem{}, models.ErrItemNotFound
	}
	return it, err
}

// ListItems returns recent items for the read-only viewer, optionally
// narrowed to a dashboard filter.
func (s *Store) ListItems(ctx context.Context, filter string, limit int) ([]models.ContentItem, error) {
	if limit <= 0 {
		limit = 50
	}
	where := ""
	switch filter {
	case "pending":
		where = "WHERE relevance_label IS NULL"
	case "relevant":
		where = "WHERE relevance_label IS NOT NULL AND relevance_label <> 'IRRELEVANT'"
	case "synthesized":
		where = "WHERE summary_headline IS NOT NULL"
	case "", "all":
	default:
		return nil, fmt.Errorf("unknown filter: %s", filter)
	}
	query := fmt.Sprintf(`SELECT %s FROM content_items %s ORDER BY fetched_at DESC LIMIT $1`, itemColumns, where)
	return s.queryItems(ctx, query, limit)
}

// ListPendingRelevance selects items the relevance stage may process.
func (s *Store) ListPendingRelevance(ctx context.Context, limit int) ([]models.ContentItem, error) {
	return s.queryItems(ctx, `
SELECT `+itemColumns+` FROM content_items
WHERE relevance_label IS NULL
ORDER BY fetched_at ASC
LIMIT $1
`, limit)
}

// SetRelevance persists the classifier verdict for one item.
func (s *Store) SetRelevance(ctx context.Context, id int64, label string, confidence float64, reason string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE content_items SET relevance_label=$2, relevance_confidence=$3, relevance_reason=$4
WHERE id=$1
`, id, label, confidence, reason)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListPendingEnrichment selects relevant items without an embedding.
func (s *Store) ListPendingEnrichment(ctx context.Context, limit int) ([]models.ContentItem, error) {
	return s.queryItems(ctx, `
SELECT `+itemColumns+` FROM content_items
WHERE relevance_label IS NOT NULL
  AND relevance_label <> 'IRRELEVANT'
  AND embedding IS NULL
ORDER BY fetched_at ASC
LIMIT $1
`, limit)
}

// SetEnrichment persists embedding, topics and cluster assignment.
func (s *Store) SetEnrichment(ctx context.Context, id int64, embedding []float32, topics []string, clusterID string) error {
	emb, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	tp, err := json.Marshal(emptyIfNil(topics))
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE content_items SET embedding=$2, topics=$3, cluster_id=$4
WHERE id=$1
`, id, emb, tp, nullableString(clusterID))
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RecentClustered returns the newest already-clustered items, newest
// first, forming the dedup lookback window.
func (s *Store) RecentClustered(ctx context.Context, n int) ([]ClusterCandidate, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, title, url, cluster_id FROM content_items
WHERE cluster_id IS NOT NULL
ORDER BY fetched_at DESC
LIMIT $1
`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClusterCandidate
	for rows.Next() {
		var c ClusterCandidate
		if err := rows.Scan(&c.ID, &c.Title, &c.URL, &c.ClusterID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListPendingRank selects relevant items that still carry the zero
// score sentinel.
func (s *Store) ListPendingRank(ctx context.Context) ([]models.ContentItem, error) {
	return s.queryItems(ctx, `
SELECT `+itemColumns+` FROM content_items
WHERE relevance_label IS NOT NULL
  AND relevance_label <> 'IRRELEVANT'
  AND priority_score = 0
ORDER BY fetched_at ASC
`)
}

// SetPriority persists a computed priority score.
func (s *Store) SetPriority(ctx context.Context, id int64, score float64) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE content_items SET priority_score=$2 WHERE id=$1`, id, score)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListPendingSynthesis selects ranked, unsummarized items ordered by
// score so synthesis spends its budget on the strongest candidates.
func (s *Store) ListPendingSynthesis(ctx context.Context, limit int) ([]models.ContentItem, error) {
	return s.queryItems(ctx, `
SELECT `+itemColumns+` FROM content_items
WHERE priority_score > 0 AND summary_headline IS NULL
ORDER BY priority_score DESC
LIMIT $1
`, limit)
}

// SetSummary persists the synthesis output and resets the gate status.
func (s *Store) SetSummary(ctx context.Context, id int64, headline, tldr string, highlights []string, whyMatters string) error {
	hl, err := json.Marshal(emptyIfNil(highlights))
	if err != nil {
		return fmt.Errorf("encode highlights: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE content_items SET summary_headline=$2, summary_tldr=$3, summary_highlights=$4,
summary_why_matters=$5, validation_status='PENDING'
WHERE id=$1
`, id, headline, tldr, hl, whyMatters)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListPendingValidation selects synthesized items awaiting the gate.
func (s *Store) ListPendingValidation(ctx context.Context) ([]models.ContentItem, error) {
	return s.queryItems(ctx, `
SELECT `+itemColumns+` FROM content_items
WHERE summary_headline IS NOT NULL AND validation_status='PENDING'
ORDER BY fetched_at ASC
`)
}

// SetValidation transitions the gate status to PASS or FAIL.
func (s *Store) SetValidation(ctx context.Context, id int64, status models.ValidationStatus) error {
	if status != models.ValidationPass && status != models.ValidationFail {
		return fmt.Errorf("invalid validation status: %s", status)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE content_items SET validation_status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListDeliverable selects validated items not yet sent, in fetch order
// so digests read oldest-first within a batch.
func (s *Store) ListDeliverable(ctx context.Context) ([]models.ContentItem, error) {
	return s.queryItems(ctx, `
SELECT `+itemColumns+` FROM content_items
WHERE validation_status='PASS' AND delivery_status='PENDING'
ORDER BY fetched_at ASC
`)
}

// MarkSent flips the whole delivered batch to SENT in one statement.
func (s *Store) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	params := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	_, err := s.DB.ExecContext(ctx,
		fmt.Sprintf(`UPDATE content_items SET delivery_status='SENT' WHERE id IN (%s)`, strings.Join(params, ",")),
		args...)
	return err
}

// Stats returns the dashboard counters in a single round trip.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.DB.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE relevance_label IS NULL),
  COUNT(*) FILTER (WHERE relevance_label IS NOT NULL AND relevance_label <> 'IRRELEVANT'),
  COUNT(*) FILTER (WHERE summary_headline IS NOT NULL),
  COUNT(*) FILTER (WHERE delivery_status = 'SENT')
FROM content_items
`).Scan(&st.Total, &st.PendingRelevance, &st.Relevant, &st.Synthesized, &st.Delivered)
	return st, err
}

// Recipient operations

// UpsertRecipient inserts a recipient or re-activates an opted-out one.
// Phone is expected to be normalized by the caller.
func (s *Store) UpsertRecipient(ctx context.Context, phone string) (models.Recipient, error) {
	if strings.TrimSpace(phone) == "" {
		return models.Recipient{}, fmt.Errorf("phone required")
	}
	var r models.Recipient
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO recipients (phone, opt_in)
VALUES ($1, TRUE)
ON CONFLICT (phone) DO UPDATE SET opt_in = TRUE
RETURNING id, phone, opt_in, created_at
`, phone).Scan(&r.ID, &r.Phone, &r.OptIn, &r.CreatedAt)
	return r, err
}

// SetOptIn flips a recipient's opt-in flag.
func (s *Store) SetOptIn(ctx context.Context, phone string, optIn bool) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE recipients SET opt_in=$2 WHERE phone=$1`, phone, optIn)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListOptedIn returns every recipient eligible for digest fan-out.
func (s *Store) ListOptedIn(ctx context.Context) ([]models.Recipient, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, phone, opt_in, created_at FROM recipients
WHERE opt_in = TRUE
ORDER BY created_at ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.Phone, &r.OptIn, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Pipeline run bookkeeping

// CreateRun records the start of an orchestrator invocation.
func (s *Store) CreateRun(ctx context.Context, trigger string) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO pipeline_runs (triggered_by, status) VALUES ($1,$2) RETURNING id
`, trigger, RunStatusRunning).Scan(&id)
	return id, err
}

// FinishRun closes out a pipeline invocation.
func (s *Store) FinishRun(ctx context.Context, id int64, status string, runErr string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE pipeline_runs SET status=$2, error=$3, finished_at=NOW() WHERE id=$1
`, id, status, nullableString(runErr))
	if err != nil {
		return err
	}
	return requireRow(res)
}

// LatestRunTime reports when the last pipeline invocation started.
func (s *Store) LatestRunTime(ctx context.Context) (*time.Time, error) {
	var ts sql.NullTime
	err := s.DB.QueryRowContext(ctx, `SELECT MAX(started_at) FROM pipeline_runs`).Scan(&ts)
	if err != nil {
		return nil, err
	}
	if !ts.Valid {
		return nil, nil
	}
	t := ts.Time
	return &t, nil
}

// ListRuns returns recent pipeline invocations newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, triggered_by, status, COALESCE(error,''), started_at, finished_at
FROM pipeline_runs
ORDER BY started_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PipelineRun
	for rows.Next() {
		var r PipelineRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Trigger, &r.Status, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			ts := finished.Time
			r.FinishedAt = &ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrItemNotFound
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func emptyIfNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
