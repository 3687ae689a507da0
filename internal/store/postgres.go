package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rvenkatesh9/outreach/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) GetDefaultUser(ctx context.Context) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE name = 'default' LIMIT 1`,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default user: %w", err)
	}
	return &u, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Profiles ---

func (s *PostgresStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, user_id, bio, research_interests, cv_text, cv_file_name, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profile.ID, profile.UserID, profile.Bio, profile.ResearchInterests,
		profile.CVText, profile.CVFileName, profile.UploadedAt)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, bio, research_interests, cv_text, cv_file_name, uploaded_at
		 FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.UserID, &p.Bio, &p.ResearchInterests, &p.CVText, &p.CVFileName, &p.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// --- Jobs ---

const jobColumns = `id, user_id, profile_id, target_field, status, current_stage,
	prospects, research_analyses, cv_insights, email_drafts, logs,
	error, created_at, updated_at, completed_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	prospects, err := marshalSlice(job.Prospects)
	if err != nil {
		return fmt.Errorf("marshal prospects: %w", err)
	}
	analyses, err := marshalSlice(job.ResearchAnalyses)
	if err != nil {
		return fmt.Errorf("marshal analyses: %w", err)
	}
	drafts, err := marshalSlice(job.EmailDrafts)
	if err != nil {
		return fmt.Errorf("marshal drafts: %w", err)
	}
	logs, err := marshalSlice(job.Logs)
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}
	var insights []byte
	if job.CVInsights != nil {
		insights, err = json.Marshal(job.CVInsights)
		if err != nil {
			return fmt.Errorf("marshal cv insights: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, user_id, profile_id, target_field, status, current_stage,
		   prospects, research_analyses, cv_insights, email_drafts, logs, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		job.ID, job.UserID, job.ProfileID, job.TargetField, job.Status, job.CurrentStage,
		prospects, analyses, insights, drafts, logs, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListJobsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob atomically merges the supplied fields into the job row and, if a
// log entry is given, appends it to the logs array in the same statement.
// Status changes are validated against the monotonic transition table while
// holding a row lock, so at most one writer can advance a job at a time and a
// duplicated stage dispatch fails fast with ErrInvalidTransition instead of
// silently re-running. Once a job is COMPLETE or ERROR the whole update is
// refused, status change or not.
func (s *PostgresStore) UpdateJob(ctx context.Context, id uuid.UUID, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update job: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock job: %w", err)
	}

	// Terminal documents are immutable: once COMPLETE or ERROR, no write of
	// any kind lands, not even a log append.
	if terminalStatus(currentStatus) {
		return fmt.Errorf("%w: job is %s", ErrInvalidTransition, currentStatus)
	}
	// Same-status writes are refused too: a duplicated stage dispatch shows
	// up as X -> X and must not re-run the stage.
	if params.Status != nil && !transitionAllowed(currentStatus, *params.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, *params.Status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET updated_at = $2`
	args := []any{id, now}
	argIdx := 3

	set := func(clause string, val any) {
		query += fmt.Sprintf(", "+clause, argIdx)
		args = append(args, val)
		argIdx++
	}

	if params.Status != nil {
		set("status = $%d", *params.Status)
	}
	if params.CurrentStage != nil {
		set("current_stage = $%d", *params.CurrentStage)
	}
	if params.Prospects != nil {
		b, err := marshalSlice(params.Prospects)
		if err != nil {
			return fmt.Errorf("marshal prospects: %w", err)
		}
		set("prospects = $%d", b)
	}
	if params.Analyses != nil {
		b, err := marshalSlice(params.Analyses)
		if err != nil {
			return fmt.Errorf("marshal analyses: %w", err)
		}
		set("research_analyses = $%d", b)
	}
	if params.Insight != nil {
		b, err := json.Marshal(params.Insight)
		if err != nil {
			return fmt.Errorf("marshal cv insights: %w", err)
		}
		set("cv_insights = $%d", b)
	}
	if params.Drafts != nil {
		b, err := marshalSlice(params.Drafts)
		if err != nil {
			return fmt.Errorf("marshal drafts: %w", err)
		}
		set("email_drafts = $%d", b)
	}
	if params.ErrorMessage != nil {
		set("error = $%d", *params.ErrorMessage)
	}
	if params.CompletedAt != nil {
		set("completed_at = $%d", *params.CompletedAt)
	}
	if params.LogEntry != nil {
		b, err := json.Marshal([]models.LogEntry{*params.LogEntry})
		if err != nil {
			return fmt.Errorf("marshal log entry: %w", err)
		}
		// Append, never overwrite: concatenation happens inside Postgres.
		set("logs = logs || $%d::jsonb", b)
	}

	query += " WHERE id = $1"

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return tx.Commit(ctx)
}

// --- Normalized audit collections ---

func (s *PostgresStore) SaveProspects(ctx context.Context, jobID uuid.UUID, prospects []models.Prospect) error {
	for _, p := range prospects {
		areas, err := json.Marshal(p.ResearchAreas)
		if err != nil {
			return fmt.Errorf("marshal research areas: %w", err)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO prospects (id, job_id, name, title, institution, email, profile_url, research_areas, found_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, jobID, p.Name, p.Title, p.Institution, p.Email, p.ProfileURL, areas, p.FoundBy)
		if err != nil {
			return fmt.Errorf("save prospect: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveAnalyses(ctx context.Context, jobID uuid.UUID, analyses []models.ResearchAnalysis) error {
	for _, a := range analyses {
		doc, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO research_analyses (prospect_id, job_id, prospect_name, document, analyzed_by)
			 VALUES ($1, $2, $3, $4, $5)`,
			a.ProspectID, jobID, a.ProspectName, doc, a.AnalyzedBy)
		if err != nil {
			return fmt.Errorf("save analysis: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveInsight(ctx context.Context, jobID uuid.UUID, insight *models.CVInsight) error {
	doc, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("marshal insight: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO cv_insights (profile_id, job_id, document, analyzed_by)
		 VALUES ($1, $2, $3, $4)`,
		insight.ProfileID, jobID, doc, insight.AnalyzedBy)
	if err != nil {
		return fmt.Errorf("save insight: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveDrafts(ctx context.Context, drafts []models.EmailDraft) error {
	for _, d := range drafts {
		elements, err := json.Marshal(d.PersonalizedElements)
		if err != nil {
			return fmt.Errorf("marshal personalized elements: %w", err)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO email_drafts (job_id, prospect_name, subject, body, personalized_elements, generated_by, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			d.JobID, d.ProspectName, d.Subject, d.Body, elements, d.GeneratedBy, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("save draft: %w", err)
		}
	}
	return nil
}

// --- helpers ---

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var prospects, analyses, insights, drafts, logs []byte
	err := row.Scan(&j.ID, &j.UserID, &j.ProfileID, &j.TargetField, &j.Status, &j.CurrentStage,
		&prospects, &analyses, &insights, &drafts, &logs,
		&j.Error, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalInto(prospects, &j.Prospects); err != nil {
		return nil, fmt.Errorf("unmarshal prospects: %w", err)
	}
	if err := unmarshalInto(analyses, &j.ResearchAnalyses); err != nil {
		return nil, fmt.Errorf("unmarshal analyses: %w", err)
	}
	if err := unmarshalInto(drafts, &j.EmailDrafts); err != nil {
		return nil, fmt.Errorf("unmarshal drafts: %w", err)
	}
	if err := unmarshalInto(logs, &j.Logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	if len(insights) > 0 {
		var ins models.CVInsight
		if err := json.Unmarshal(insights, &ins); err != nil {
			return nil, fmt.Errorf("unmarshal cv insights: %w", err)
		}
		j.CVInsights = &ins
	}
	return &j, nil
}

func unmarshalInto[T any](data []byte, dst *[]T) error {
	if len(data) == 0 {
		*dst = []T{}
		return nil
	}
	return json.Unmarshal(data, dst)
}

// marshalSlice marshals a slice as a JSON array, mapping nil to [] so jsonb
// concatenation on the column always operates on an array.
func marshalSlice[T any](s []T) ([]byte, error) {
	if s == nil {
		s = []T{}
	}
	return json.Marshal(s)
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
