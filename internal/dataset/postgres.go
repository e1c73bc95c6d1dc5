package dataset

import (
	"context"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"groupscholar-workforce-estimator/internal/estimatorerrors"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads the occupation table from Postgres. Counts are selected as text and
// go through the same cleaning as file sources, so columns holding "1,234" style values
// behave exactly like a csv export.
type PostgresSource struct {
	db      Querier
	table   string
	orderBy string
}

// NewPostgresSource returns a source for table, optionally ordered by orderBy. Both must
// be plain or schema-qualified identifiers.
func NewPostgresSource(db Querier, table, orderBy string) (*PostgresSource, error) {
	if !identifierPattern.MatchString(table) {
		return nil, errors.Errorf("invalid table name %q", table)
	}
	if orderBy != "" && !identifierPattern.MatchString(orderBy) {
		return nil, errors.Errorf("invalid order column %q", orderBy)
	}
	return &PostgresSource{db: db, table: table, orderBy: orderBy}, nil
}

// OpenPool connects to dsn and verifies the connection.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "unable to reach postgres")
	}
	return pool, nil
}

// SelectQuery builds the statement used by Load.
func (s *PostgresSource) SelectQuery() (string, []any, error) {
	query := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(
			"CAST(occupation AS TEXT) AS occupation",
			"CAST(total AS TEXT) AS total",
			"CAST(men AS TEXT) AS men",
			"CAST(women AS TEXT) AS women",
		).
		From(s.table).
		Where(sq.NotEq{"occupation": nil})
	if s.orderBy != "" {
		query = query.OrderBy(s.orderBy)
	}
	return query.ToSql()
}

// Load runs the select and cleans the rows.
func (s *PostgresSource) Load(ctx context.Context) (*Dataset, error) {
	sql, args, err := s.SelectQuery()
	if err != nil {
		return nil, errors.Wrap(err, "building occupation query")
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.classify(err)
	}
	defer rows.Close()

	header := []string{ColumnOccupation, ColumnTotal, ColumnMen, ColumnWomen}
	var table [][]string
	for rows.Next() {
		var occupation, total, men, women *string
		if err := rows.Scan(&occupation, &total, &men, &women); err != nil {
			return nil, errors.Wrap(err, "scanning occupation row")
		}
		table = append(table, []string{deref(occupation), deref(total), deref(men), deref(women)})
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(err)
	}
	return parseTable(s.table, header, table, 0)
}

// classify maps a missing table or column onto ErrDataFormat; anything else is returned wrapped.
func (s *PostgresSource) classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01", "42703": // undefined_table, undefined_column
			return estimatorerrors.NewDataFormat(s.table, "%s", pgErr.Message)
		}
	}
	return errors.Wrapf(err, "querying %s", s.table)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
