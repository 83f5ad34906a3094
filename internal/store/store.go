package store

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"TakaneWatch/internal/model"
)

const dateLayout = "2006-01-02"

var header = []string{
	"code", "name", "market",
	"all_time_high", "all_time_high_date",
	"one_year_high", "one_year_high_date",
	"last_price", "last_update",
}

// Store persists the per-symbol master table as a flat CSV file with a
// header row. Single-process, single-writer: the whole table is loaded
// at startup and replaced wholesale after each scan.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the entire master table. A missing file is an empty store;
// a corrupt file degrades to an empty store with a warning rather than
// killing the scan.
func (s *Store) Load() (map[string]model.SymbolState, error) {
	states := make(map[string]model.SymbolState)

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return states, nil
		}
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		log.Printf("[WARN] store file %s is corrupt, starting from an empty store: %v", s.path, err)
		return make(map[string]model.SymbolState), nil
	}
	if len(rows) == 0 {
		return states, nil
	}

	for i, row := range rows[1:] {
		st, err := parseRow(row)
		if err != nil {
			log.Printf("[WARN] store row %d skipped: %v", i+2, err)
			continue
		}
		states[st.Code] = st
	}
	return states, nil
}

// Save replaces the backing file wholesale. The write goes to a temp
// file first and is renamed into place so a crash mid-write cannot
// leave a half-table behind.
func (s *Store) Save(states map[string]model.SymbolState) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".master-*.csv")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write store header: %w", err)
	}

	codes := make([]string, 0, len(states))
	for code := range states {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if err := w.Write(formatRow(states[code])); err != nil {
			tmp.Close()
			return fmt.Errorf("write store row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush store: %w", err)
	}
	// CreateTemp opens 0600; the master table should stay readable by
	// operator tooling after the rename.
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func formatRow(st model.SymbolState) []string {
	return []string{
		st.Code, st.Name, st.Market,
		strconv.FormatFloat(st.AllTimeHigh, 'f', -1, 64),
		st.AllTimeHighDate.Format(dateLayout),
		strconv.FormatFloat(st.OneYearHigh, 'f', -1, 64),
		st.OneYearHighDate.Format(dateLayout),
		strconv.FormatFloat(st.LastPrice, 'f', -1, 64),
		st.LastUpdate.Format(dateLayout),
	}
}

func parseRow(row []string) (model.SymbolState, error) {
	var st model.SymbolState
	if len(row) != len(header) {
		return st, fmt.Errorf("expected %d columns, got %d", len(header), len(row))
	}
	st.Code = row[0]
	st.Name = row[1]
	st.Market = row[2]

	var err error
	if st.AllTimeHigh, err = strconv.ParseFloat(row[3], 64); err != nil {
		return st, fmt.Errorf("all_time_high: %w", err)
	}
	if st.AllTimeHighDate, err = time.Parse(dateLayout, row[4]); err != nil {
		return st, fmt.Errorf("all_time_high_date: %w", err)
	}
	if st.OneYearHigh, err = strconv.ParseFloat(row[5], 64); err != nil {
		return st, fmt.Errorf("one_year_high: %w", err)
	}
	if st.OneYearHighDate, err = time.Parse(dateLayout, row[6]); err != nil {
		return st, fmt.Errorf("one_year_high_date: %w", err)
	}
	if st.LastPrice, err = strconv.ParseFloat(row[7], 64); err != nil {
		return st, fmt.Errorf("last_price: %w", err)
	}
	if st.LastUpdate, err = time.Parse(dateLayout, row[8]); err != nil {
		return st, fmt.Errorf("last_update: %w", err)
	}
	if st.Code == "" {
		return st, fmt.Errorf("empty code")
	}
	return st, nil
}
