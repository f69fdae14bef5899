package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// snapshotFile is the on-disk gallery fallback. It lets the kiosk come
// up with a working gallery before the local store has been hydrated,
// e.g. on a fresh database after an offline restart.
type snapshotFile struct {
	Embeddings      [][]float32    `json:"embeddings"`
	EmployeeIDs     []int64        `json:"employee_ids"`
	EmployeeInfo    []employeeInfo `json:"employee_info"`
	LastUpdate      string         `json:"last_update"`
	TotalEmbeddings int            `json:"total_embeddings"`
	UniqueEmployees int            `json:"unique_employees"`
}

type employeeInfo struct {
	DBID         int64  `json:"db_id"`
	EmployeeCode string `json:"employee_code"`
	Name         string `json:"name"`
}

// WriteSnapshot persists the entries to path atomically (write to a
// temp file in the same directory, then rename).
func WriteSnapshot(path string, entries []Entry, now time.Time) error {
	sf := snapshotFile{
		Embeddings:      make([][]float32, len(entries)),
		EmployeeIDs:     make([]int64, len(entries)),
		EmployeeInfo:    make([]employeeInfo, len(entries)),
		LastUpdate:      now.Format(time.RFC3339),
		TotalEmbeddings: len(entries),
	}
	seen := map[int64]struct{}{}
	for i, e := range entries {
		sf.Embeddings[i] = e.Vector
		sf.EmployeeIDs[i] = e.EmployeeID
		sf.EmployeeInfo[i] = employeeInfo{DBID: e.EmployeeID, EmployeeCode: e.Code, Name: e.Name}
		seen[e.EmployeeID] = struct{}{}
	}
	sf.UniqueEmployees = len(seen)

	data, err := json.Marshal(sf)
	if err != nil {
		return fmt.Errorf("encode gallery snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gallery-*")
	if err != nil {
		return fmt.Errorf("write gallery snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write gallery snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write gallery snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write gallery snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads entries from a snapshot file. Row counts across
// the parallel arrays must agree.
func ReadSnapshot(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gallery snapshot: %w", err)
	}
	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("decode gallery snapshot: %w", err)
	}
	n := len(sf.Embeddings)
	if len(sf.EmployeeIDs) != n || len(sf.EmployeeInfo) != n {
		return nil, fmt.Errorf("decode gallery snapshot: row counts disagree (%d/%d/%d)",
			n, len(sf.EmployeeIDs), len(sf.EmployeeInfo))
	}
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = Entry{
			EmployeeID: sf.EmployeeIDs[i],
			Code:       sf.EmployeeInfo[i].EmployeeCode,
			Name:       sf.EmployeeInfo[i].Name,
			Vector:     sf.Embeddings[i],
		}
	}
	return entries, nil
}
