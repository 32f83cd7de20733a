package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fieldsafe/hazard-engine/internal/model"
	"github.com/fieldsafe/hazard-engine/internal/retrieval"
	"github.com/fieldsafe/hazard-engine/internal/similarity"
)

// SQLiteStore implements Store using modernc.org/sqlite. Embeddings are
// stored as JSON and vector search ranks in process, which is fine at
// local-workstation scale.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id                   TEXT PRIMARY KEY,
	tracking_code        TEXT NOT NULL DEFAULT '',
	reporter_name        TEXT NOT NULL DEFAULT '',
	location_name        TEXT NOT NULL,
	detail_location      TEXT NOT NULL DEFAULT '',
	location_description TEXT NOT NULL DEFAULT '',
	non_compliance       TEXT NOT NULL DEFAULT '',
	sub_non_compliance   TEXT NOT NULL DEFAULT '',
	finding_description  TEXT NOT NULL DEFAULT '',
	latitude             REAL,
	longitude            REAL,
	status               TEXT NOT NULL DEFAULT 'PENDING_REVIEW',
	cluster_id           TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
CREATE INDEX IF NOT EXISTS idx_reports_cluster_id ON reports(cluster_id);

CREATE TABLE IF NOT EXISTS kb_chunks (
	id                TEXT PRIMARY KEY,
	knowledge_base_id TEXT NOT NULL,
	content           TEXT NOT NULL,
	embedding         TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_kb_chunks_kb_id ON kb_chunks(knowledge_base_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteReportColumns = `id, tracking_code, reporter_name, location_name, detail_location,
	location_description, non_compliance, sub_non_compliance, finding_description,
	latitude, longitude, status, cluster_id, created_at`

func (s *SQLiteStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	lat, lon := coordColumns(r.Coords)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (`+sqliteReportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TrackingCode, r.ReporterName, r.LocationName, r.DetailLocation,
		r.LocationDescription, r.NonCompliance, r.SubNonCompliance, r.FindingDescription,
		lat, lon, string(r.Status), r.ClusterID, r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert report")
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteReportColumns+` FROM reports WHERE id = ?`,
		id,
	)
	r, err := scanSQLiteReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get report %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) FetchCandidates(ctx context.Context, filter similarity.CandidateFilter) ([]model.Report, error) {
	query := `SELECT ` + sqliteReportColumns + ` FROM reports WHERE true`
	args := []any{}

	if filter.WindowDays > 0 {
		query += ` AND created_at >= ?`
		args = append(args, time.Now().UTC().AddDate(0, 0, -filter.WindowDays))
	}
	if len(filter.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(filter.Statuses)) + `)`
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.RequireCoords {
		query += ` AND latitude IS NOT NULL AND longitude IS NOT NULL`
	}
	if filter.ExcludeID != "" {
		query += ` AND id <> ?`
		args = append(args, filter.ExcludeID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch candidates")
	}
	defer rows.Close()

	return collectSQLiteReports(rows)
}

func (s *SQLiteStore) ImportReports(ctx context.Context, reports []model.Report) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, r := range reports {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		lat, lon := coordColumns(r.Coords)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO reports (`+sqliteReportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET status = excluded.status, cluster_id = excluded.cluster_id`,
			r.ID, r.TrackingCode, r.ReporterName, r.LocationName, r.DetailLocation,
			r.LocationDescription, r.NonCompliance, r.SubNonCompliance, r.FindingDescription,
			lat, lon, string(r.Status), r.ClusterID, r.CreatedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import report %s", r.ID)
		}
		rows, _ := res.RowsAffected()
		n += rows
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}
	return n, nil
}

// AssignCluster mirrors the PostgreSQL implementation. SQLite serializes
// writers on the database lock, so the transaction alone gives the same
// at-most-one-cluster guarantee.
func (s *SQLiteStore) AssignCluster(ctx context.Context, reportIDs []string, proposedID string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: assign cluster begin")
	}
	defer tx.Rollback() //nolint:errcheck

	query := `SELECT cluster_id FROM reports WHERE id IN (` + placeholders(len(reportIDs)) + `)`
	args := make([]any, 0, len(reportIDs))
	for _, id := range reportIDs {
		args = append(args, id)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: read cluster members")
	}

	existing := make(map[string]bool)
	locked := 0
	for rows.Next() {
		var clusterID *string
		if err := rows.Scan(&clusterID); err != nil {
			rows.Close()
			return "", eris.Wrap(err, "sqlite: scan member")
		}
		locked++
		if clusterID != nil && *clusterID != "" {
			existing[*clusterID] = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", eris.Wrap(err, "sqlite: read cluster members iterate")
	}
	if locked != len(reportIDs) {
		return "", eris.Errorf("sqlite: assign cluster: %d of %d reports found", locked, len(reportIDs))
	}

	chosen := proposedID
	if len(existing) > 0 {
		ids := make([]string, 0, len(existing))
		for id := range existing {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		idArgs := make([]any, 0, len(ids))
		for _, id := range ids {
			idArgs = append(idArgs, id)
		}
		err := tx.QueryRowContext(ctx,
			`SELECT cluster_id FROM reports WHERE cluster_id IN (`+placeholders(len(ids))+`)
			 GROUP BY cluster_id ORDER BY COUNT(*) DESC, cluster_id ASC LIMIT 1`,
			idArgs...,
		).Scan(&chosen)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: pick largest cluster")
		}
	}

	updateArgs := append([]any{chosen}, args...)
	if _, err := tx.ExecContext(ctx,
		`UPDATE reports SET cluster_id = ? WHERE id IN (`+placeholders(len(reportIDs))+`)`,
		updateArgs...,
	); err != nil {
		return "", eris.Wrap(err, "sqlite: stamp cluster members")
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: assign cluster commit")
	}
	return chosen, nil
}

func (s *SQLiteStore) FetchByClusterID(ctx context.Context, clusterID string) ([]model.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteReportColumns+` FROM reports WHERE cluster_id = ? ORDER BY created_at ASC`,
		clusterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: fetch cluster %s", clusterID)
	}
	defer rows.Close()

	return collectSQLiteReports(rows)
}

func (s *SQLiteStore) FetchAllClusterAssignments(ctx context.Context) ([]model.ClusterAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cluster_id FROM reports WHERE cluster_id IS NOT NULL`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan cluster assignments")
	}
	defer rows.Close()

	var assignments []model.ClusterAssignment
	for rows.Next() {
		var a model.ClusterAssignment
		if err := rows.Scan(&a.ReportID, &a.ClusterID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cluster assignment")
		}
		assignments = append(assignments, a)
	}
	return assignments, eris.Wrap(rows.Err(), "sqlite: scan cluster assignments iterate")
}

func (s *SQLiteStore) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	for _, c := range chunks {
		embJSON, err := json.Marshal(c.Embedding)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal embedding %s", c.ID)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO kb_chunks (id, knowledge_base_id, content, embedding) VALUES (?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET content = excluded.content, embedding = excluded.embedding`,
			c.ID, c.KnowledgeBaseID, c.Content, string(embJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert chunk %s", c.ID)
		}
	}
	return nil
}

// VectorTopK ranks in process: SQLite has no vector operator, so all
// chunks of the knowledge base are loaded and scored by cosine.
func (s *SQLiteStore) VectorTopK(ctx context.Context, knowledgeBaseID string, query []float32, k int) ([]model.Chunk, error) {
	chunks, err := s.fetchChunksAll(ctx, knowledgeBaseID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: vector query %s", knowledgeBaseID)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return retrieval.Cosine(query, chunks[i].Embedding) > retrieval.Cosine(query, chunks[j].Embedding)
	})
	if len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks, nil
}

func (s *SQLiteStore) FetchChunks(ctx context.Context, knowledgeBaseID string, limit int) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, knowledge_base_id, content, embedding FROM kb_chunks
		 WHERE knowledge_base_id = ? LIMIT ?`,
		knowledgeBaseID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: fetch chunks %s", knowledgeBaseID)
	}
	defer rows.Close()

	return collectSQLiteChunks(rows)
}

func (s *SQLiteStore) fetchChunksAll(ctx context.Context, knowledgeBaseID string) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, knowledge_base_id, content, embedding FROM kb_chunks WHERE knowledge_base_id = ?`,
		knowledgeBaseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSQLiteChunks(rows)
}

func collectSQLiteChunks(rows *sql.Rows) ([]model.Chunk, error) {
	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var embJSON *string
		if err := rows.Scan(&c.ID, &c.KnowledgeBaseID, &c.Content, &embJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan chunk")
		}
		if embJSON != nil && *embJSON != "" {
			if err := json.Unmarshal([]byte(*embJSON), &c.Embedding); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal embedding %s", c.ID)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, eris.Wrap(rows.Err(), "sqlite: scan chunks iterate")
}

func collectSQLiteReports(rows *sql.Rows) ([]model.Report, error) {
	var reports []model.Report
	for rows.Next() {
		r, err := scanSQLiteReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: iterate reports")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteReport(row rowScanner) (*model.Report, error) {
	var r model.Report
	var lat, lon *float64
	var status string

	err := row.Scan(
		&r.ID, &r.TrackingCode, &r.ReporterName, &r.LocationName, &r.DetailLocation,
		&r.LocationDescription, &r.NonCompliance, &r.SubNonCompliance, &r.FindingDescription,
		&lat, &lon, &status, &r.ClusterID, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = model.ReportStatus(status)
	if lat != nil && lon != nil {
		r.Coords = &model.Coordinates{Latitude: *lat, Longitude: *lon}
	}
	return &r, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
