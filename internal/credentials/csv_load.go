package credentials

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/ipxyd/ipxyd/internal/model"
)

// defaultBatchColumns returns the column order assumed when a batch CSV
// carries no "#..." header line, matching the teacher distillation's
// per-input-type default (alias_repository.rs's DEFAULT_COLUMNS, and the
// two header layouts spec §4.10 names for xtream vs m3u batches).
func defaultBatchColumns(inputType string) []string {
	if inputType == "xtream" {
		return []string{"name", "username", "password", "url", "max_connections", "priority", "exp_date"}
	}
	return []string{"url", "max_connections", "priority", "name", "username", "password", "exp_date"}
}

// ReadBatchCSV parses a batch CSV file into the full set of accounts it
// declares (spec §4.10 "Batch inputs reference a CSV"). Unlike
// internal/panelapi's csv_store.go (which appends/updates one row in
// place), this reads the entire file into a catalog, mirroring
// alias_repository.rs's csv_read_inputs_from_reader.
func ReadBatchCSV(path, inputName, inputType string) ([]*model.ProviderAccount, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("credentials: open batch csv %s: %w", path, err)
	}
	defer f.Close()

	columns := defaultBatchColumns(inputType)
	headerSeen := false

	var out []*model.ProviderAccount
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if !headerSeen {
				headerSeen = true
				columns = strings.Split(line[1:], ";")
			}
			continue
		}

		fields := strings.Split(line, ";")
		acct := &model.ProviderAccount{InputName: inputName, MaxConnections: 1}
		for i, col := range columns {
			if i >= len(fields) {
				break
			}
			assignBatchColumn(acct, col, strings.TrimSpace(fields[i]))
		}
		if acct.Name == "" {
			acct.Name = deriveNameFromURL(acct.BaseURL, acct.Username)
		}
		out = append(out, acct)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("credentials: read batch csv %s: %w", path, err)
	}
	return out, nil
}

func assignBatchColumn(acct *model.ProviderAccount, column, value string) {
	if value == "" {
		return
	}
	switch column {
	case "name":
		acct.Name = value
	case "username":
		acct.Username = value
	case "password":
		acct.Password = value
	case "url":
		acct.BaseURL = value
	case "max_connections":
		if n, err := strconv.ParseUint(value, 10, 16); err == nil {
			acct.MaxConnections = uint16(n)
		}
	case "priority":
		if n, err := strconv.ParseInt(value, 10, 16); err == nil {
			acct.Priority = int16(n)
		}
	case "exp_date":
		if ts, ok := parseCSVExpDate(value); ok {
			acct.ExpDate = ts
		}
	}
}

// deriveNameFromURL falls back to a name built from the url/username when
// the CSV has no name column, matching alias_repository.rs's
// csv_assign_mandatory_fields domain-derived fallback in spirit (a
// stable, human-legible handle rather than a literal domain-split match).
func deriveNameFromURL(rawURL, username string) string {
	if rawURL == "" {
		return username
	}
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host := strings.SplitN(u.Host, ".", 2)[0]
		if username != "" {
			return host + "-" + username
		}
		return host
	}
	return username
}
