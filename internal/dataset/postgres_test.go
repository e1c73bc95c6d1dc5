package dataset

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupscholar-workforce-estimator/internal/estimatorerrors"
)

type fakeRows struct {
	rows [][]*string
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return errors.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}
	for i, value := range row {
		target, ok := dest[i].(**string)
		if !ok {
			return errors.Errorf("unsupported destination %T", dest[i])
		}
		*target = value
	}
	return nil
}

type fakeQuerier struct {
	sql  string
	rows *fakeRows
	err  error
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.sql = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func str(s string) *string { return &s }

func TestPostgresSource_SelectQuery(t *testing.T) {
	source, err := NewPostgresSource(&fakeQuerier{}, "census.occupations", "id")
	require.NoError(t, err)

	sql, args, err := source.SelectQuery()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT CAST(occupation AS TEXT) AS occupation, CAST(total AS TEXT) AS total, "+
			"CAST(men AS TEXT) AS men, CAST(women AS TEXT) AS women "+
			"FROM census.occupations WHERE occupation IS NOT NULL ORDER BY id",
		sql)
	assert.Empty(t, args)
}

func TestNewPostgresSource_RejectsUnsafeIdentifiers(t *testing.T) {
	_, err := NewPostgresSource(&fakeQuerier{}, "occupations; DROP TABLE x", "")
	assert.Error(t, err)

	_, err = NewPostgresSource(&fakeQuerier{}, "occupations", "id desc")
	assert.Error(t, err)
}

func TestPostgresSource_Load(t *testing.T) {
	querier := &fakeQuerier{rows: &fakeRows{rows: [][]*string{
		{str("21300 Civil engineers"), str("78,000"), str("62000"), str("16000")},
		{str("Summary"), nil, str("1"), str("1")},
	}}}
	source, err := NewPostgresSource(querier, "occupations", "")
	require.NoError(t, err)

	ds, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, 1, ds.Dropped())
	assert.Equal(t, Record{Occupation: "21300 Civil engineers", Total: 78000, Men: 62000, Women: 16000}, ds.Records()[0])
	assert.Contains(t, querier.sql, "FROM occupations")
}

func TestPostgresSource_UndefinedColumnIsDataFormat(t *testing.T) {
	querier := &fakeQuerier{err: &pgconn.PgError{Code: "42703", Message: `column "men" does not exist`}}
	source, err := NewPostgresSource(querier, "occupations", "")
	require.NoError(t, err)

	_, err = source.Load(context.Background())
	assert.True(t, estimatorerrors.IsDataFormat(err))
}

func TestPostgresSource_OtherErrorsWrapped(t *testing.T) {
	querier := &fakeQuerier{err: errors.New("connection reset")}
	source, err := NewPostgresSource(querier, "occupations", "")
	require.NoError(t, err)

	_, err = source.Load(context.Background())
	require.Error(t, err)
	assert.False(t, estimatorerrors.IsDataFormat(err))
	assert.Contains(t, err.Error(), "connection reset")
}
