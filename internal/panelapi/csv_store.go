package panelapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// defaultBatchHeader returns the column layout used when a fresh batch
// file has no header line yet, keyed by input type (spec §4.9 "preserves
// comment-delimited CSV headers").
func defaultBatchHeader(inputType string) string {
	if strings.EqualFold(inputType, "xtream") {
		return "name;username;password;url;max_connections;priority;exp_date"
	}
	return "url;max_connections;priority;name;username;password;exp_date"
}

// PatchBatchCSVAppend appends a new alias row to the batch file at path,
// inserting a default "#col;col;..." header line if the file is new or
// headerless (spec §4.9 step 4).
func PatchBatchCSVAppend(path string, inputType, aliasName, baseURL, username, password string, expDate int64) error {
	raw, _ := os.ReadFile(path) // missing file => treated as empty, same as the teacher's batch loaders
	lines := splitLines(string(raw))

	headerIdx := findHeaderLine(lines)
	var header string
	if headerIdx >= 0 {
		header = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[headerIdx]), "#"))
	} else {
		header = defaultBatchHeader(inputType)
		lines = append([]string{"#" + header}, lines...)
	}
	cols := splitColumns(header)

	record := make([]string, len(cols))
	for i, c := range cols {
		switch strings.ToLower(c) {
		case "name":
			record[i] = aliasName
		case "username":
			record[i] = username
		case "password":
			record[i] = password
		case "url":
			if strings.EqualFold(inputType, "m3u") {
				record[i] = fmt.Sprintf("%s/get.php?username=%s&password=%s&type=m3u_plus", trimLastSlash(baseURL), username, password)
			} else {
				record[i] = baseURL
			}
		case "max_connections":
			record[i] = "1"
		case "priority":
			record[i] = "0"
		case "exp_date":
			if expDate != 0 {
				record[i] = strconv.FormatInt(expDate, 10)
			}
		}
	}
	lines = append(lines, strings.Join(record, ";"))
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

// PatchBatchCSVUpdateExpDate rewrites the exp_date column of the row
// matching accountName (by its name column, or else by username+password)
// (spec §4.9 step 3).
func PatchBatchCSVUpdateExpDate(path, accountName, username, password string, expDate int64) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("panel_api: failed to read csv: %w", err)
	}
	lines := splitLines(string(raw))
	headerIdx := findHeaderLine(lines)
	if headerIdx < 0 {
		return fmt.Errorf("panel_api: csv missing header line")
	}
	cols := splitColumns(strings.TrimPrefix(strings.TrimSpace(lines[headerIdx]), "#"))
	expIdx := columnIndex(cols, "exp_date")
	if expIdx < 0 {
		return nil // no exp_date column: nothing to persist, not an error
	}
	nameIdx := columnIndex(cols, "name")
	userIdx := columnIndex(cols, "username")
	passIdx := columnIndex(cols, "password")
	urlIdx := columnIndex(cols, "url")

	for i := headerIdx + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := resize(splitColumns(lines[i]), len(cols))

		matches := false
		if nameIdx >= 0 && fields[nameIdx] == accountName {
			matches = true
		}
		if !matches {
			if userIdx >= 0 && passIdx >= 0 {
				matches = fields[userIdx] == username && fields[passIdx] == password
			} else if urlIdx >= 0 {
				if u, p, ok := extractUsernamePasswordFromURL(fields[urlIdx]); ok {
					matches = u == username && p == password
				}
			}
		}
		if matches {
			fields[expIdx] = strconv.FormatInt(expDate, 10)
			lines[i] = strings.Join(fields, ";")
			return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
		}
	}
	return nil // no matching row: quietly skip, mirroring the teacher's "warn and continue"
}

func splitLines(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(raw, "\n"), "\n")
}

func splitColumns(line string) []string {
	parts := strings.Split(line, ";")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func findHeaderLine(lines []string) int {
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "#") {
			return i
		}
	}
	return -1
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

func resize(fields []string, n int) []string {
	if len(fields) >= n {
		return fields[:n]
	}
	out := make([]string, n)
	copy(out, fields)
	return out
}
