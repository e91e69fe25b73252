package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// txBeginner is an interface for types that can begin a transaction (e.g., *pgxpool.Pool, *database.DB).
// Used by Create and Update to wrap the rule write and its criterion writes in a
// transaction when the underlying DBTX is a pool rather than an existing transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Compile-time interface verification.
var _ RuleRepository = (*PgRuleRepository)(nil)

// PgRuleRepository is a PostgreSQL implementation of RuleRepository.
type PgRuleRepository struct {
	db DBTX
}

// NewPgRuleRepository creates a new PostgreSQL rule repository.
func NewPgRuleRepository(db DBTX) *PgRuleRepository {
	return &PgRuleRepository{db: db}
}

// Create inserts a new search rule together with its criteria.
func (r *PgRuleRepository) Create(ctx context.Context, rule *domain.SearchRule) error {
	if rule == nil {
		return domain.NewValidationError("rule", "rule cannot be nil")
	}
	if rule.ID == uuid.Nil {
		return domain.NewValidationError("id", "rule ID is required")
	}

	return r.inTx(ctx, func(repo *PgRuleRepository) error {
		query := `
			INSERT INTO search_rules (
				id, name, description, is_active, frequency,
				last_run, notification_emails, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

		_, err := repo.db.Exec(ctx, query,
			rule.ID, rule.Name, rule.Description, rule.IsActive, rule.Frequency,
			rule.LastRun, rule.NotificationEmails, rule.CreatedAt, rule.UpdatedAt,
		)
		if err != nil {
			if isPgUniqueViolation(err) {
				return domain.NewAlreadyExistsError("rule", rule.ID.String())
			}
			return fmt.Errorf("failed to create rule: %w", err)
		}

		return repo.insertCriteria(ctx, rule.ID, rule.Criteria)
	})
}

// Get retrieves a search rule by its ID with criteria loaded.
func (r *PgRuleRepository) Get(ctx context.Context, id uuid.UUID) (*domain.SearchRule, error) {
	query := `
		SELECT id, name, description, is_active, frequency,
			last_run, notification_emails, created_at, updated_at
		FROM search_rules
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("rule", id.String())
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	criteria, err := r.loadCriteria(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	rule.Criteria = criteria[id]

	return rule, nil
}

// Update replaces a rule's fields and its entire criterion list atomically.
func (r *PgRuleRepository) Update(ctx context.Context, rule *domain.SearchRule) error {
	if rule == nil {
		return domain.NewValidationError("rule", "rule cannot be nil")
	}
	if rule.ID == uuid.Nil {
		return domain.NewValidationError("id", "rule ID is required")
	}

	return r.inTx(ctx, func(repo *PgRuleRepository) error {
		query := `
			UPDATE search_rules SET
				name = $1,
				description = $2,
				is_active = $3,
				frequency = $4,
				notification_emails = $5,
				updated_at = $6
			WHERE id = $7`

		result, err := repo.db.Exec(ctx, query,
			rule.Name, rule.Description, rule.IsActive, rule.Frequency,
			rule.NotificationEmails, time.Now().UTC(), rule.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}
		if result.RowsAffected() == 0 {
			return domain.NewNotFoundError("rule", rule.ID.String())
		}

		// Replace the criterion list wholesale. Existing results keep their
		// review state; only future evaluations see the new criteria.
		if _, err := repo.db.Exec(ctx, "DELETE FROM search_criteria WHERE rule_id = $1", rule.ID); err != nil {
			return fmt.Errorf("failed to clear criteria: %w", err)
		}

		return repo.insertCriteria(ctx, rule.ID, rule.Criteria)
	})
}

// Delete removes a search rule. Criteria and results cascade.
func (r *PgRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, "DELETE FROM search_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("rule", id.String())
	}
	return nil
}

// List retrieves search rules matching the filter criteria.
func (r *PgRuleRepository) List(ctx context.Context, filter RuleFilter) ([]*domain.SearchRule, int64, error) {
	applyPaginationDefaults(&filter.Limit, &filter.Offset)

	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIndex := 1

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIndex))
		args = append(args, *filter.IsActive)
		argIndex++
	}

	if filter.Frequency != "" {
		conditions = append(conditions, fmt.Sprintf("frequency = $%d", argIndex))
		args = append(args, filter.Frequency)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM search_rules WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count rules: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT id, name, description, is_active, frequency,
			last_run, notification_emails, created_at, updated_at
		FROM search_rules
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rules, err := r.queryRules(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}

	if err := r.attachCriteria(ctx, rules); err != nil {
		return nil, 0, err
	}

	return rules, totalCount, nil
}

// ListDue returns active scheduled rules whose next run time is at or before now.
func (r *PgRuleRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.SearchRule, error) {
	query := `
		SELECT id, name, description, is_active, frequency,
			last_run, notification_emails, created_at, updated_at
		FROM search_rules
		WHERE is_active AND frequency <> 'manual'
		ORDER BY last_run ASC NULLS FIRST`

	rules, err := r.queryRules(ctx, query)
	if err != nil {
		return nil, err
	}

	// The interval arithmetic lives in the domain, so filter in memory. The
	// scheduled rule population is small.
	due := rules[:0]
	for _, rule := range rules {
		if rule.IsDue(now) {
			due = append(due, rule)
		}
	}

	if err := r.attachCriteria(ctx, due); err != nil {
		return nil, err
	}

	return due, nil
}

// UpdateLastRun records the completion time of a successful evaluation pass.
func (r *PgRuleRepository) UpdateLastRun(ctx context.Context, id uuid.UUID, lastRun time.Time) error {
	query := `
		UPDATE search_rules
		SET last_run = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, lastRun, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("rule", id.String())
	}
	return nil
}

// inTx runs fn in a transaction when the underlying DBTX is a pool, or
// directly when it is already a transaction.
func (r *PgRuleRepository) inTx(ctx context.Context, fn func(*PgRuleRepository) error) error {
	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := fn(&PgRuleRepository{db: tx}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	return fn(r)
}

// insertCriteria inserts the criterion list for a rule.
func (r *PgRuleRepository) insertCriteria(ctx context.Context, ruleID uuid.UUID, criteria []domain.Criterion) error {
	if len(criteria) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range criteria {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(`
			INSERT INTO search_criteria (
				id, rule_id, field_type, value, operator, group_num, order_num, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, ruleID, c.FieldType, c.Value, c.Operator, c.Group, c.Order, time.Now().UTC(),
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range criteria {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert criterion: %w", err)
		}
	}
	return nil
}

// loadCriteria loads criteria for the given rule IDs, keyed by rule,
// ordered by group then order within group.
func (r *PgRuleRepository) loadCriteria(ctx context.Context, ruleIDs []uuid.UUID) (map[uuid.UUID][]domain.Criterion, error) {
	if len(ruleIDs) == 0 {
		return map[uuid.UUID][]domain.Criterion{}, nil
	}

	query := `
		SELECT id, rule_id, field_type, value, operator, group_num, order_num, created_at
		FROM search_criteria
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, group_num, order_num`

	rows, err := r.db.Query(ctx, query, ruleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load criteria: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]domain.Criterion, len(ruleIDs))
	for rows.Next() {
		var c domain.Criterion
		if err := rows.Scan(&c.ID, &c.RuleID, &c.FieldType, &c.Value, &c.Operator, &c.Group, &c.Order, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan criterion: %w", err)
		}
		result[c.RuleID] = append(result[c.RuleID], c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating criteria: %w", err)
	}

	return result, nil
}

// attachCriteria loads and attaches criteria for a slice of rules.
func (r *PgRuleRepository) attachCriteria(ctx context.Context, rules []*domain.SearchRule) error {
	ids := make([]uuid.UUID, len(rules))
	for i, rule := range rules {
		ids[i] = rule.ID
	}

	criteria, err := r.loadCriteria(ctx, ids)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		rule.Criteria = criteria[rule.ID]
	}
	return nil
}

// queryRules runs a rule query and scans all rows.
func (r *PgRuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]*domain.SearchRule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.SearchRule
	for rows.Next() {
		rule, err := scanRuleFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// isPgForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

// scanRule scans a single row into a SearchRule.
func scanRule(row pgx.Row) (*domain.SearchRule, error) {
	var rule domain.SearchRule
	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.IsActive, &rule.Frequency,
		&rule.LastRun, &rule.NotificationEmails, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// scanRuleFromRows scans the current row from pgx.Rows into a SearchRule.
func scanRuleFromRows(rows pgx.Rows) (*domain.SearchRule, error) {
	var rule domain.SearchRule
	err := rows.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.IsActive, &rule.Frequency,
		&rule.LastRun, &rule.NotificationEmails, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
