package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"carbonregistry/internal/project/models"
	id "carbonregistry/pkg/domain"
	"carbonregistry/pkg/platform/sentinel"
	txcontext "carbonregistry/pkg/platform/tx"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore keeps projects in the projects table and the trail in
// project_audit. projects.audit_seq holds the last sequence written so the
// CAS update hands out the next one atomically.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed project store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const projectColumns = `project_id, title, sub_domain, country_code, sectoral_scope, start_time, end_time,
	parameters, credit_quantity, start_block, end_block, serial_number, constants_version,
	status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Project, entry *models.AuditEntry) error {
	params, err := json.Marshal(p.Parameters)
	if err != nil {
		return fmt.Errorf("marshal project parameters: %w", err)
	}
	return txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (`+projectColumns+`, audit_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
		`,
			p.ProjectID, p.Title, string(p.SubDomain), p.CountryCode, p.SectoralScope,
			p.StartTime, p.EndTime, params, p.CreditQuantity, p.StartBlock, p.EndBlock,
			p.SerialNumber, p.ConstantsVersion, string(p.Status), p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return translateWriteErr("insert project", err)
		}
		entry.Sequence = 1
		return insertAudit(ctx, tx, entry)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, projectID string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_id = $1`, projectID)
	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("find project %s: %w", projectID, err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, projectID string, expected, next models.Status, entry *models.AuditEntry, at time.Time) (*models.Project, error) {
	var updated *models.Project
	err := txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE projects
			SET status = $3, audit_seq = audit_seq + 1, updated_at = $4
			WHERE project_id = $1 AND status = $2
			RETURNING `+projectColumns+`, audit_seq
		`, projectID, string(expected), string(next), at)

		var seq int
		p, err := scanProject(row, &seq)
		if errors.Is(err, sentinel.ErrNotFound) {
			return missOrStale(ctx, tx, projectID)
		}
		if err != nil {
			return fmt.Errorf("update project status: %w", err)
		}
		entry.Sequence = seq
		if err := insertAudit(ctx, tx, entry); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// missOrStale tells an unknown project apart from a lost compare-and-set.
func missOrStale(ctx context.Context, tx *sql.Tx, projectID string) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE project_id = $1)`, projectID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check project %s: %w: %w", projectID, sentinel.ErrUnavailable, err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *PostgresStore) History(ctx context.Context, projectID string) ([]*models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, seq, event_id, prior_status, new_status, actor, comment, created_at
		FROM project_audit
		WHERE project_id = $1
		ORDER BY seq ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project audit: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	out := []*models.AuditEntry{}
	for rows.Next() {
		var (
			e           models.AuditEntry
			prior, next string
		)
		if err := rows.Scan(&e.ProjectID, &e.Sequence, &e.EventID, &prior, &next, &e.Actor, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project audit: %w: %w", sentinel.ErrUnavailable, err)
		}
		e.PriorStatus = models.Status(prior)
		e.NewStatus = models.Status(next)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list project audit: %w: %w", sentinel.ErrUnavailable, err)
	}
	return out, nil
}

// List binds q.Condition.Args as $1..$n and appends the paging parameters.
func (s *PostgresStore) List(ctx context.Context, q models.Query) (*models.Page, error) {
	where := ""
	if q.Condition.Clause != "" {
		where = " WHERE " + q.Condition.Clause
	}
	args := append([]any(nil), q.Condition.Args...)

	page := &models.Page{Items: []*models.Project{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count projects: %w: %w", sentinel.ErrUnavailable, err)
	}

	n := len(args)
	query := `SELECT ` + projectColumns + ` FROM projects` + where +
		` ORDER BY length(project_id) ASC, project_id ASC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Size, max(q.Offset(), 0))...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		page.Items = append(page.Items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w: %w", sentinel.ErrUnavailable, err)
	}
	return page, nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, e *models.AuditEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO project_audit (project_id, seq, event_id, prior_status, new_status, actor, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ProjectID, e.Sequence, e.EventID, string(e.PriorStatus), string(e.NewStatus), e.Actor, e.Comment, e.CreatedAt)
	if err != nil {
		return translateWriteErr("insert project audit", err)
	}
	return nil
}

func translateWriteErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner, extra ...any) (*models.Project, error) {
	var (
		p         models.Project
		subDomain string
		status    string
		params    []byte
	)
	dest := []any{
		&p.ProjectID, &p.Title, &subDomain, &p.CountryCode, &p.SectoralScope,
		&p.StartTime, &p.EndTime, &params, &p.CreditQuantity, &p.StartBlock, &p.EndBlock,
		&p.SerialNumber, &p.ConstantsVersion, &status, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	if err := json.Unmarshal(params, &p.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal project parameters: %w", err)
	}
	p.SubDomain = id.SubDomain(subDomain)
	p.Status = models.Status(status)
	return &p, nil
}
