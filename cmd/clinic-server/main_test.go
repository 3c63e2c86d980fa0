package main

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"

	"github.com/dentalclinic/clinic/internal/platform/db"
)

func TestParseRoles(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"receptionist", []string{"receptionist"}, false},
		{" admin , supervisor ", []string{"admin", "supervisor"}, false},
		{"admin,,", []string{"admin"}, false},
		{"", nil, true},
		{"physician", nil, true},
	}
	for _, tt := range tests {
		got, err := parseRoles(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRoles(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("parseRoles(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMigrationSource_Embedded(t *testing.T) {
	migrations, err := db.NewMigrator(nil, migrationSource("")).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) < 3 {
		t.Fatalf("expected the embedded schema, got %d migrations", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("expected contiguous versions, got %d at %d", m.Version, i)
		}
	}
}

func TestMigrationSource_Dir(t *testing.T) {
	dir := t.TempDir()
	entries, err := fs.ReadDir(migrationSource(dir), ".")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty dir, got %d entries", len(entries))
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	prodLogger := newLogger("production", &buf)
	prodLogger.Info().Msg("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output in production, got %q", buf.String())
	}

	buf.Reset()
	devLogger := newLogger("development", &buf)
	devLogger.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected console output in development, got %q", buf.String())
	}
}

func TestCommands(t *testing.T) {
	for _, tt := range []struct {
		name string
		cmd  interface{ Name() string }
	}{
		{"serve", serveCmd()},
		{"migrate", migrateCmd()},
		{"sweep", sweepCmd()},
		{"recompute", recomputeCmd()},
		{"token", tokenCmd()},
	} {
		if tt.cmd.Name() != tt.name {
			t.Errorf("expected command %s, got %s", tt.name, tt.cmd.Name())
		}
	}
}

func TestRecomputeCmd_RequiresOneTarget(t *testing.T) {
	for _, args := range [][]string{{}, {"--all", "--student", "x"}} {
		cmd := recomputeCmd()
		cmd.SetArgs(args)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		err := cmd.Execute()
		if err == nil || !strings.Contains(err.Error(), "exactly one") {
			t.Errorf("args %v: expected target error, got %v", args, err)
		}
	}
}
