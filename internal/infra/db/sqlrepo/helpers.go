package sqlrepo

import "strings"

// upsertSQL builds INSERT ... ON DUPLICATE KEY UPDATE for MySQL and
// INSERT ... ON CONFLICT DO UPDATE elsewhere. Placeholders are rebound.
func upsertSQL(d Dialect, table string, keys, cols []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	q := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + marks + ")"

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var sets []string
	for _, c := range cols {
		if isKey[c] {
			continue
		}
		if d == MySQL {
			sets = append(sets, c+"=VALUES("+c+")")
		} else {
			sets = append(sets, c+"=EXCLUDED."+c)
		}
	}
	if d == MySQL {
		q += " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	} else {
		q += " ON CONFLICT (" + strings.Join(keys, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return d.Rebind(q)
}

// orDash returns "-" when the input is empty or whitespace.
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
