package db

import (
	"context"
	"testing"
)

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	ctx := context.Background()
	dbh, err := Open(ctx, "sqlite3", "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dbh.Close()

	for _, table := range []string{"exercises", "attempts", "grades", "event_log"} {
		var n int
		if err := dbh.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=$1`, table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
	if got := dbh.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("sqlite max open conns = %d", got)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizeDriver(t *testing.T) {
	cases := map[Driver]Driver{
		"pgx": DriverPostgres, " Postgres ": DriverPostgres, "sqlite3": DriverSQLite, "": DriverSQLite,
	}
	for in, want := range cases {
		if got := normalizeDriver(in); got != want {
			t.Errorf("normalizeDriver(%q) = %q, want %q", in, got, want)
		}
	}
}
