package migrate

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"
)

// ValidateDir checks every .sql file in dir before it reaches goose: the
// version prefix must be a 14 digit UTC timestamp, versions must be unique,
// and each file needs both directions with balanced statement blocks.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("list migrations in %q: %w", dir, err)
	}

	versions := make(map[int64]string, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		version, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if prev, ok := versions[version]; ok {
			return fmt.Errorf("migration version %d used by both %q and %q", version, prev, name)
		}
		versions[version] = name

		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}
		if err := checkAnnotations(body); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func migrationVersion(name string) (int64, error) {
	prefix, slug, ok := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
	if !ok || len(prefix) != len(versionLayout) || slug == "" || migrationSlug(slug) != slug {
		return 0, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
	}
	version, err := goose.NumericComponent(name)
	if err != nil {
		return 0, fmt.Errorf("invalid migration filename %q: %w", name, err)
	}
	return version, nil
}

func checkAnnotations(body []byte) error {
	var up, down bool
	open := 0
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		annotation, ok := strings.CutPrefix(line, "-- +goose")
		fields := strings.Fields(annotation)
		if !ok || len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "Up":
			if open > 0 {
				return errors.New("Up annotation inside an open statement block")
			}
			up = true
		case "Down":
			if open > 0 {
				return errors.New("Down annotation inside an open statement block")
			}
			down = true
		case "StatementBegin":
			open++
		case "StatementEnd":
			open--
			if open < 0 {
				return errors.New("StatementEnd without StatementBegin")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case !up:
		return errors.New(`missing "-- +goose Up"`)
	case !down:
		return errors.New(`missing "-- +goose Down"`)
	case open != 0:
		return errors.New("unterminated StatementBegin")
	}
	return nil
}
