package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"oshimaint/internal/catalog"
	"oshimaint/internal/services"
)

var conflictColumns = map[string][]string{
	catalog.TableCelebrities:      {"id"},
	catalog.TableEpisodes:         {"id"},
	catalog.TableLocations:        {"id"},
	catalog.TableItems:            {"id"},
	catalog.TableEpisodeLocations: {"episode_id", "location_id"},
	catalog.TableEpisodeItems:     {"episode_id", "item_id"},
}

var columnName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// RestoreRow upserts a backed-up row. Only the columns present in the
// payload are written, through json_populate_record so Postgres performs
// the type conversions.
func (s *Store) RestoreRow(ctx context.Context, table string, payload json.RawMessage) error {
	conflict, ok := conflictColumns[table]
	if !ok {
		return services.Wrap(services.ErrValidation, component, "restore", fmt.Sprintf("table %q is not restorable", table), nil)
	}
	query, err := restoreQuery(table, conflict, payload)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, string(payload)); err != nil {
		return dbError("restore "+table, err)
	}
	return nil
}

func restoreQuery(table string, conflict []string, payload json.RawMessage) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", services.Wrap(services.ErrValidation, component, "restore", "backup payload is not a JSON object", err)
	}
	columns := make([]string, 0, len(fields))
	for name := range fields {
		if !columnName.MatchString(name) {
			return "", services.Wrap(services.ErrValidation, component, "restore", fmt.Sprintf("invalid column %q", name), nil)
		}
		columns = append(columns, name)
	}
	sort.Strings(columns)
	for _, key := range conflict {
		if _, ok := fields[key]; !ok {
			return "", services.Wrap(services.ErrValidation, component, "restore", fmt.Sprintf("backup payload lacks %q", key), nil)
		}
	}

	quoted := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, name := range columns {
		quoted[i] = pgx.Identifier{name}.Sanitize()
		if !slices.Contains(conflict, name) {
			updates = append(updates, quoted[i]+" = EXCLUDED."+quoted[i])
		}
	}
	conflictQuoted := make([]string, len(conflict))
	for i, name := range conflict {
		conflictQuoted[i] = pgx.Identifier{name}.Sanitize()
	}
	tableQuoted := pgx.Identifier{table}.Sanitize()

	action := "DO NOTHING"
	if len(updates) > 0 {
		action = "DO UPDATE SET " + strings.Join(updates, ", ")
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM json_populate_record(NULL::%s, $1::json) ON CONFLICT (%s) %s",
		tableQuoted,
		strings.Join(quoted, ", "),
		strings.Join(quoted, ", "),
		tableQuoted,
		strings.Join(conflictQuoted, ", "),
		action,
	), nil
}
