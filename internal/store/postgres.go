package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"

	"github.com/fieldsafe/hazard-engine/internal/db"
	"github.com/fieldsafe/hazard-engine/internal/model"
	"github.com/fieldsafe/hazard-engine/internal/similarity"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const reportColumns = `id, tracking_code, reporter_name, location_name, detail_location,
	location_description, non_compliance, sub_non_compliance, finding_description,
	latitude, longitude, status, cluster_id, created_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"get_report":         `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`,
	"fetch_by_cluster":   `SELECT ` + reportColumns + ` FROM reports WHERE cluster_id = $1 ORDER BY created_at ASC`,
	"cluster_scan":       `SELECT id, cluster_id FROM reports WHERE cluster_id IS NOT NULL`,
	"vector_top_k":       `SELECT id, knowledge_base_id, content, embedding FROM kb_chunks WHERE knowledge_base_id = $1 ORDER BY embedding <=> $2 LIMIT $3`,
	"fetch_chunks":       `SELECT id, knowledge_base_id, content, embedding FROM kb_chunks WHERE knowledge_base_id = $1 LIMIT $2`,
	"set_cluster_member": `UPDATE reports SET cluster_id = $1 WHERE id = ANY($2)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare hot statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk report imports).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS reports (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tracking_code        TEXT NOT NULL DEFAULT '',
	reporter_name        TEXT NOT NULL DEFAULT '',
	location_name        TEXT NOT NULL,
	detail_location      TEXT NOT NULL DEFAULT '',
	location_description TEXT NOT NULL DEFAULT '',
	non_compliance       TEXT NOT NULL DEFAULT '',
	sub_non_compliance   TEXT NOT NULL DEFAULT '',
	finding_description  TEXT NOT NULL DEFAULT '',
	latitude             DOUBLE PRECISION,
	longitude            DOUBLE PRECISION,
	status               TEXT NOT NULL DEFAULT 'PENDING_REVIEW',
	cluster_id           TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_reports_cluster_id ON reports(cluster_id) WHERE cluster_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS kb_chunks (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	knowledge_base_id TEXT NOT NULL,
	content           TEXT NOT NULL,
	embedding         VECTOR,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_kb_chunks_kb_id ON kb_chunks(knowledge_base_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	lat, lon := coordColumns(r.Coords)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (`+reportColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.TrackingCode, r.ReporterName, r.LocationName, r.DetailLocation,
		r.LocationDescription, r.NonCompliance, r.SubNonCompliance, r.FindingDescription,
		lat, lon, string(r.Status), r.ClusterID, r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert report")
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`,
		id,
	)
	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get report %s", id)
	}
	return r, nil
}

func (s *PostgresStore) FetchCandidates(ctx context.Context, filter similarity.CandidateFilter) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE true`
	args := []any{}
	argIdx := 1

	if filter.WindowDays > 0 {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, time.Now().UTC().AddDate(0, 0, -filter.WindowDays))
		argIdx++
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		query += fmt.Sprintf(` AND status = ANY($%d)`, argIdx)
		args = append(args, statuses)
		argIdx++
	}
	if filter.RequireCoords {
		query += ` AND latitude IS NOT NULL AND longitude IS NOT NULL`
	}
	if filter.ExcludeID != "" {
		query += fmt.Sprintf(` AND id <> $%d`, argIdx)
		args = append(args, filter.ExcludeID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch candidates")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: fetch candidates iterate")
}

var reportImportColumns = []string{
	"id", "tracking_code", "reporter_name", "location_name", "detail_location",
	"location_description", "non_compliance", "sub_non_compliance", "finding_description",
	"latitude", "longitude", "status", "cluster_id", "created_at",
}

func (s *PostgresStore) ImportReports(ctx context.Context, reports []model.Report) (int64, error) {
	rows := make([][]any, 0, len(reports))
	for _, r := range reports {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		lat, lon := coordColumns(r.Coords)
		rows = append(rows, []any{
			r.ID, r.TrackingCode, r.ReporterName, r.LocationName, r.DetailLocation,
			r.LocationDescription, r.NonCompliance, r.SubNonCompliance, r.FindingDescription,
			lat, lon, string(r.Status), r.ClusterID, r.CreatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "reports",
		Columns:      reportImportColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: import reports")
}

// AssignCluster locks the given report rows, picks the cluster ID to use
// (the largest cluster any of them already belongs to, falling back to
// proposedID), and stamps all of them with it. Concurrent assignments over
// overlapping report sets serialize on the row locks, so the loser of a
// race sees the winner's cluster ID and joins it instead of minting a
// second cluster.
func (s *PostgresStore) AssignCluster(ctx context.Context, reportIDs []string, proposedID string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: assign cluster begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx,
		`SELECT cluster_id FROM reports WHERE id = ANY($1) FOR UPDATE`,
		reportIDs,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: lock cluster members")
	}

	existing := make(map[string]bool)
	locked := 0
	for rows.Next() {
		var clusterID *string
		if err := rows.Scan(&clusterID); err != nil {
			rows.Close()
			return "", eris.Wrap(err, "postgres: scan locked member")
		}
		locked++
		if clusterID != nil && *clusterID != "" {
			existing[*clusterID] = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", eris.Wrap(err, "postgres: lock cluster members iterate")
	}
	if locked != len(reportIDs) {
		return "", eris.Errorf("postgres: assign cluster: %d of %d reports found", locked, len(reportIDs))
	}

	chosen := proposedID
	if len(existing) > 0 {
		ids := make([]string, 0, len(existing))
		for id := range existing {
			ids = append(ids, id)
		}
		err := tx.QueryRow(ctx,
			`SELECT cluster_id FROM reports WHERE cluster_id = ANY($1)
			 GROUP BY cluster_id ORDER BY COUNT(*) DESC, cluster_id ASC LIMIT 1`,
			ids,
		).Scan(&chosen)
		if err != nil {
			return "", eris.Wrap(err, "postgres: pick largest cluster")
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE reports SET cluster_id = $1 WHERE id = ANY($2)`,
		chosen, reportIDs,
	); err != nil {
		return "", eris.Wrap(err, "postgres: stamp cluster members")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: assign cluster commit")
	}
	return chosen, nil
}

func (s *PostgresStore) FetchByClusterID(ctx context.Context, clusterID string) ([]model.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE cluster_id = $1 ORDER BY created_at ASC`,
		clusterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: fetch cluster %s", clusterID)
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan cluster member")
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: fetch cluster iterate")
}

func (s *PostgresStore) FetchAllClusterAssignments(ctx context.Context) ([]model.ClusterAssignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cluster_id FROM reports WHERE cluster_id IS NOT NULL`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan cluster assignments")
	}
	defer rows.Close()

	var assignments []model.ClusterAssignment
	for rows.Next() {
		var a model.ClusterAssignment
		if err := rows.Scan(&a.ReportID, &a.ClusterID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cluster assignment")
		}
		assignments = append(assignments, a)
	}
	return assignments, eris.Wrap(rows.Err(), "postgres: scan cluster assignments iterate")
}

func (s *PostgresStore) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	for _, c := range chunks {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO kb_chunks (id, knowledge_base_id, content, embedding) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET content = $3, embedding = $4`,
			c.ID, c.KnowledgeBaseID, c.Content, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert chunk %s", c.ID)
		}
	}
	return nil
}

func (s *PostgresStore) VectorTopK(ctx context.Context, knowledgeBaseID string, query []float32, k int) ([]model.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, knowledge_base_id, content, embedding FROM kb_chunks
		 WHERE knowledge_base_id = $1 ORDER BY embedding <=> $2 LIMIT $3`,
		knowledgeBaseID, pgvector.NewVector(query), k,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: vector query %s", knowledgeBaseID)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (s *PostgresStore) FetchChunks(ctx context.Context, knowledgeBaseID string, limit int) ([]model.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, knowledge_base_id, content, embedding FROM kb_chunks
		 WHERE knowledge_base_id = $1 LIMIT $2`,
		knowledgeBaseID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: fetch chunks %s", knowledgeBaseID)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// scanReport reads one report row in reportColumns order.
func scanReport(row pgx.Row) (*model.Report, error) {
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

func scanChunks(rows pgx.Rows) ([]model.Chunk, error) {
	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.KnowledgeBaseID, &c.Content, &vec); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chunk")
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, c)
	}
	return chunks, eris.Wrap(rows.Err(), "postgres: scan chunks iterate")
}

func coordColumns(c *model.Coordinates) (lat, lon *float64) {
	if c == nil {
		return nil, nil
	}
	return &c.Latitude, &c.Longitude
}
