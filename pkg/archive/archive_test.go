package archive_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/greenbox/pkg/archive"
)

func openArchive(t *testing.T) *archive.Archive {
	t.Helper()

	a, err := archive.Open(context.Background(), filepath.Join(t.TempDir(), "rec", "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return a
}

func payloads(recs []archive.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = string(r.Payload)
	}

	return out
}

func Test_Append_Then_Query_Returns_Records_In_Order(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := openArchive(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)

	require.NoError(t, a.Append(ctx, []archive.Record{
		{Box: "feed", WriterID: "w1", Slot: 0, Payload: []byte("one"), ReceivedAt: at},
		{Box: "feed", WriterID: "w1", Slot: 1, Payload: []byte("two"), ReceivedAt: at},
		{Box: "other", WriterID: "w2", Slot: 0, Payload: nil, ReceivedAt: at},
	}))

	got, err := a.Query(ctx, archive.Query{Box: "feed"})
	require.NoError(t, err)

	want := []archive.Record{
		{Box: "feed", WriterID: "w1", Slot: 0, Payload: []byte("one"), ReceivedAt: at},
		{Box: "feed", WriterID: "w1", Slot: 1, Payload: []byte("two"), ReceivedAt: at},
	}

	opts := cmp.Options{
		cmpopts.IgnoreFields(archive.Record{}, "ID"),
		cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) }),
	}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	assert.Less(t, got[0].ID, got[1].ID)

	all, err := a.Query(ctx, archive.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", ""}, payloads(all))
}

func Test_Query_Limit_Keeps_Newest_In_Ascending_Order(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := openArchive(t)

	var recs []archive.Record
	for _, p := range []string{"a", "b", "c", "d"} {
		recs = append(recs, archive.Record{Box: "feed", WriterID: "w", Payload: []byte(p)})
	}

	require.NoError(t, a.Append(ctx, recs))

	got, err := a.Query(ctx, archive.Query{Box: "feed", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, payloads(got))

	after, err := a.Query(ctx, archive.Query{AfterID: got[0].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, payloads(after))
}

func Test_Count_Filters_By_Box(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := openArchive(t)

	require.NoError(t, a.Append(ctx, []archive.Record{
		{Box: "feed", Payload: []byte("x")},
		{Box: "feed", Payload: []byte("y")},
		{Box: "ticks", Payload: []byte("z")},
	}))

	n, err := a.Count(ctx, "feed")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = a.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func Test_Open_Reuses_Existing_Database(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")

	a, err := archive.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, a.Append(ctx, []archive.Record{{Box: "feed", Payload: []byte("kept")}}))
	require.NoError(t, a.Close())

	b, err := archive.Open(ctx, path)
	require.NoError(t, err)

	defer b.Close()

	got, err := b.Query(ctx, archive.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, payloads(got))
}

func Test_Open_Rejects_Unknown_Schema_Version(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	_, err = db.Exec("PRAGMA user_version = 999")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = archive.Open(context.Background(), path)
	require.ErrorIs(t, err, archive.ErrSchemaVersion)
}

func Test_Methods_Return_ErrClosed_After_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := openArchive(t)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	require.ErrorIs(t, a.Append(ctx, []archive.Record{{Box: "x"}}), archive.ErrClosed)

	_, err := a.Query(ctx, archive.Query{})
	require.ErrorIs(t, err, archive.ErrClosed)

	_, err = a.Count(ctx, "")
	require.ErrorIs(t, err, archive.ErrClosed)
}
