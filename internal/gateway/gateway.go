// internal/gateway/gateway.go
//
// The declarative query gateway: one entry point that turns a client-supplied
// operation description (table, verb, payload, filters, options) into a
// parameterized SQL statement scoped to the calling user. The pipeline order
// is fixed: authorization precheck, table allow-list, operation validation,
// filter application in request order, then order, then limit, then result
// shaping.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/siftmail/sift-backend/internal/auth"
	"github.com/siftmail/sift-backend/internal/core"
	"github.com/siftmail/sift-backend/internal/domain"
	"github.com/siftmail/sift-backend/internal/logger"
)

// Gateway error taxonomy. Every failure leaving Execute is one of these
// (or auth.ErrUnauthenticated), so the transport layer maps them 1:1 to
// HTTP statuses.
var (
	ErrInvalidTable         = errors.New("table is not accessible through this endpoint")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInvalidColumn        = errors.New("invalid column name")
	ErrInvalidFilterValue   = errors.New("invalid value provided for filter")
	ErrInvalidPayload       = errors.New("operation requires a data payload")
	ErrInvalidLimit         = errors.New("limit must not be negative")
	ErrFilterRequired       = errors.New("update and delete require at least one filter")
	ErrNotFound             = errors.New("no rows found")
	ErrMultipleRows         = errors.New("multiple rows returned where exactly one was expected")
	ErrStorageTimeout       = errors.New("storage operation timed out")
)

var customLog = logger.NewLogger()

// allowedTables is the fixed set of collections reachable through the
// gateway, each mapped to its tenant column. Every operation is implicitly
// scoped to the calling user through that column; client-supplied table
// names outside this set are rejected.
var allowedTables = map[string]string{
	"emails":           "user_id",
	"email_accounts":   "user_id",
	"triage_rules":     "user_id",
	"user_preferences": "user_id",
}

// Request describes one database operation, as received from the client.
type Request struct {
	Table     string         `json:"table" binding:"required"`
	Operation string         `json:"operation" binding:"required"`
	Data      map[string]any `json:"data,omitempty"`
	Filters   []Filter       `json:"filters,omitempty"`
	Options   Options        `json:"options,omitempty"`
}

// Order describes the requested result ordering.
type Order struct {
	Column     string `json:"column"`
	Ascending  *bool  `json:"ascending,omitempty"`
	NullsFirst *bool  `json:"nullsFirst,omitempty"`
}

// Options carries projection, ordering, and result-shape settings.
type Options struct {
	Columns     []string `json:"columns,omitempty"`
	Order       *Order   `json:"order,omitempty"`
	Limit       *int     `json:"limit,omitempty"`
	Single      bool     `json:"single,omitempty"`
	MaybeSingle bool     `json:"maybeSingle,omitempty"`
}

// Result is the shaped outcome of an executed operation. Data is a row map,
// a slice of row maps, a count map, or nil (maybeSingle over zero rows).
type Result struct {
	Data any
}

// Gateway executes declarative operation requests against storage.
type Gateway struct {
	db      *sql.DB
	timeout time.Duration
}

// NewGateway creates a Gateway over the given pool. timeout bounds every
// storage call; on expiry the caller sees ErrStorageTimeout instead of a hang.
func NewGateway(db *sql.DB, timeout time.Duration) *Gateway {
	return &Gateway{db: db, timeout: timeout}
}

// Execute runs one operation request on behalf of caller. The caller
// identity must already be resolved by the session authenticator; Execute
// performs no authentication of its own and rejects a nil caller outright.
func (g *Gateway) Execute(ctx context.Context, req *Request, caller *domain.User) (*Result, error) {
	if caller == nil {
		return nil, auth.ErrUnauthenticated
	}

	tenantColumn, ok := allowedTables[req.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, req.Table)
	}

	op, err := ParseOperation(req.Operation)
	if err != nil {
		return nil, err
	}

	// The tenant predicate is conjoined first so no request can escape the
	// caller's own rows, then client filters in request order.
	where, args, applied, err := g.buildWhere(req.Filters, tenantColumn, caller.ID)
	if err != nil {
		return nil, err
	}
	switch op {
	case OpSelect:
		return g.execSelect(ctx, req, where, args)
	case OpInsert:
		return g.execInsert(ctx, req, tenantColumn, caller.ID)
	case OpUpdate:
		if applied == 0 {
			return nil, ErrFilterRequired
		}
		return g.execUpdate(ctx, req, tenantColumn, where, args)
	case OpDelete:
		if applied == 0 {
			return nil, ErrFilterRequired
		}
		return g.execDelete(ctx, req, where, args)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperation, req.Operation)
}

// buildWhere conjoins the tenant predicate and the request filters, in
// request order. It returns the WHERE body, its arguments, and how many
// client filters actually contributed a predicate. Filters with an unknown
// type are skipped with a warning rather than rejected; older clients send
// tags this version does not know.
func (g *Gateway) buildWhere(filters []Filter, tenantColumn, callerID string) (string, []any, int, error) {
	clauses := []string{tenantColumn + " = ?"}
	args := []any{callerID}
	applied := 0

	for _, f := range filters {
		ft, known := ParseFilterType(f.Type)
		if !known {
			customLog.Warnf("Gateway: skipping filter with unknown type %q on column %q", f.Type, f.Column)
			continue
		}
		if !core.IsValidIdentifier(f.Column) {
			return "", nil, 0, fmt.Errorf("%w: %q", ErrInvalidColumn, f.Column)
		}
		clause, clauseArgs, err := predicate(ft, f)
		if err != nil {
			return "", nil, 0, err
		}
		clauses = append(clauses, clause)
		args = append(args, clauseArgs...)
		applied++
	}

	return strings.Join(clauses, " AND "), args, applied, nil
}

func (g *Gateway) execSelect(ctx context.Context, req *Request, where string, args []any) (*Result, error) {
	projection := "*"
	if len(req.Options.Columns) > 0 {
		if err := validateColumns(req.Options.Columns); err != nil {
			return nil, err
		}
		projection = strings.Join(req.Options.Columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s", projection, req.Table, where)

	// Order before limit: the pipeline order is fixed regardless of the
	// JSON field order the client used.
	if ord := req.Options.Order; ord != nil {
		if !core.IsValidIdentifier(ord.Column) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, ord.Column)
		}
		direction := "ASC"
		if ord.Ascending != nil && !*ord.Ascending {
			direction = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", ord.Column, direction)
		if ord.NullsFirst != nil {
			if *ord.NullsFirst {
				sb.WriteString(" NULLS FIRST")
			} else {
				sb.WriteString(" NULLS LAST")
			}
		}
	}
	if req.Options.Limit != nil {
		if *req.Options.Limit < 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, *req.Options.Limit)
		}
		fmt.Fprintf(&sb, " LIMIT %d", *req.Options.Limit)
	}

	rows, err := g.queryRows(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return shapeRows(rows, req.Options)
}

func (g *Gateway) execInsert(ctx context.Context, req *Request, tenantColumn, callerID string) (*Result, error) {
	if len(req.Data) == 0 {
		return nil, ErrInvalidPayload
	}

	var columns []string
	var placeholders []string
	var values []any
	for key, val := range req.Data {
		if !core.IsValidIdentifier(key) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, key)
		}
		if key == tenantColumn {
			continue // Overridden below; clients cannot insert rows for other users.
		}
		columns = append(columns, key)
		placeholders = append(placeholders, "?")
		values = append(values, val)
	}
	columns = append(columns, tenantColumn)
	placeholders = append(placeholders, "?")
	values = append(values, callerID)

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		req.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.db.ExecContext(ctx, insertSQL, values...)
	if err != nil {
		return nil, g.mapStorageError(err, insertSQL)
	}
	lastID, err := result.LastInsertId()
	if err != nil {
		customLog.Warnf("Gateway: failed to get last insert id: %v", err)
		return nil, fmt.Errorf("failed to confirm insert: %w", err)
	}

	// Return the inserted row, matching the read path's shaping.
	selectSQL := fmt.Sprintf("SELECT * FROM %s WHERE rowid = ?", req.Table)
	rows, err := g.queryRows(ctx, selectSQL, lastID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &Result{Data: rows[0]}, nil
}

func (g *Gateway) execUpdate(ctx context.Context, req *Request, tenantColumn, where string, args []any) (*Result, error) {
	if len(req.Data) == 0 {
		return nil, ErrInvalidPayload
	}

	var setClauses []string
	var values []any
	for key, val := range req.Data {
		if !core.IsValidIdentifier(key) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, key)
		}
		if key == tenantColumn {
			customLog.Warnf("Gateway: ignoring attempt to update tenant column %q", key)
			continue
		}
		setClauses = append(setClauses, key+" = ?")
		values = append(values, val)
	}
	if len(setClauses) == 0 {
		return nil, ErrInvalidPayload
	}

	updateSQL := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		req.Table, strings.Join(setClauses, ", "), where)
	values = append(values, args...)

	count, err := g.execCount(ctx, updateSQL, values...)
	if err != nil {
		return nil, err
	}
	return &Result{Data: map[string]any{"count": count}}, nil
}

func (g *Gateway) execDelete(ctx context.Context, req *Request, where string, args []any) (*Result, error) {
	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s", req.Table, where)
	count, err := g.execCount(ctx, deleteSQL, args...)
	if err != nil {
		return nil, err
	}
	return &Result{Data: map[string]any{"count": count}}, nil
}

// queryRows executes a SELECT under the gateway timeout and scans every row
// into a map keyed by column name.
func (g *Gateway) queryRows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, g.mapStorageError(err, query)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed processing results: %w", err)
	}
	numColumns := len(columns)

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, numColumns)
		scanArgs := make([]any, numColumns)
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed reading row data: %w", err)
		}

		rowData := make(map[string]any, numColumns)
		for i, colName := range columns {
			if byteSlice, ok := values[i].([]byte); ok {
				rowData[colName] = string(byteSlice)
			} else {
				rowData[colName] = values[i]
			}
		}
		results = append(results, rowData)
	}
	if err = rows.Err(); err != nil {
		return nil, g.mapStorageError(err, query)
	}
	return results, nil
}

// execCount runs a mutating statement under the gateway timeout and returns
// the affected-row count.
func (g *Gateway) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, g.mapStorageError(err, query)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed confirming mutation: %w", err)
	}
	return count, nil
}

// mapStorageError converts driver failures into the gateway taxonomy. The
// raw error is logged server-side; callers only see the mapped kind.
func (g *Gateway) mapStorageError(err error, query string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		customLog.Warnf("Gateway: storage timeout\nSQL: %s", query)
		return ErrStorageTimeout
	}
	customLog.Warnf("Gateway: storage error: %v\nSQL: %s", err, query)
	return fmt.Errorf("database error executing operation: %w", err)
}

// shapeRows applies the single/maybeSingle result-shape options.
func shapeRows(rows []map[string]any, opts Options) (*Result, error) {
	switch {
	case opts.Single:
		if len(rows) == 0 {
			return nil, ErrNotFound
		}
		if len(rows) > 1 {
			return nil, ErrMultipleRows
		}
		return &Result{Data: rows[0]}, nil
	case opts.MaybeSingle:
		if len(rows) == 0 {
			return &Result{Data: nil}, nil
		}
		if len(rows) > 1 {
			return nil, ErrMultipleRows
		}
		return &Result{Data: rows[0]}, nil
	default:
		return &Result{Data: rows}, nil
	}
}

// AllowedTables returns the collections reachable through the gateway.
// Exposed for diagnostics and tests.
func AllowedTables() []string {
	names := make([]string, 0, len(allowedTables))
	for name := range allowedTables {
		names = append(names, name)
	}
	return names
}
