package storage

import "testing"

func TestRebind(t *testing.T) {
	cases := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{"mysql untouched", DialectMySQL, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"postgres numbered", DialectPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"quoted literal kept", DialectPostgres, "SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{"no placeholders", DialectPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.dialect.Rebind(tc.in); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{
		"":           DialectMySQL,
		"mysql":      DialectMySQL,
		"PGX":        DialectPostgres,
		"postgres":   DialectPostgres,
		"postgresql": DialectPostgres,
	}
	for in, want := range cases {
		got, err := parseDialect(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %s, %v", in, got, err)
		}
	}
	if _, err := parseDialect("sqlite"); err == nil {
		t.Fatal("expected error for sqlite")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 || len(entries)%2 != 0 {
		t.Fatalf("expected paired up/down files, got %d", len(entries))
	}
}
