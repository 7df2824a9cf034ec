package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"ledgersync/internal/config"
	"ledgersync/internal/db"
)

// downMarker splits a migration file into its up and down halves; only the
// up half is applied.
const downMarker = "-- +migrate Down"

func main() {
	dir := flag.String("dir", "migrations", "directory containing .sql migration files")
	flag.Parse()

	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		log.Fatalf("failed to ensure schema_migrations: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		log.Fatalf("failed to list migrations: %v", err)
	}
	sort.Strings(files)

	applied := 0
	for _, file := range files {
		filename := filepath.Base(file)
		var done bool
		if err := database.Get(&done, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			log.Fatalf("failed to read migration state: %v", err)
		}
		if done {
			continue
		}
		if err := applyFile(database, file); err != nil {
			log.Fatalf("failed to apply %s: %v", filename, err)
		}
		applied++
		log.Printf("applied %s", filename)
	}
	log.Printf("up to date, %d migration(s) applied", applied)
}

// applyFile runs the up statements and records the filename in one
// transaction, so a failed statement leaves the migration unrecorded.
func applyFile(database *sqlx.DB, path string) error {
	content, err := readUpSection(path)
	if err != nil {
		return err
	}
	tx, err := database.Beginx()
	if err != nil {
		return err
	}
	for _, stmt := range splitStatements(content) {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filepath.Base(path)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func readUpSection(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	up, _, _ := strings.Cut(string(raw), downMarker)
	return up, nil
}

// splitStatements cuts the SQL on semicolons at line ends, skipping comment
// lines so a semicolon in a comment does not split a statement.
func splitStatements(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.HasSuffix(strings.TrimRight(line, " \t"), ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
