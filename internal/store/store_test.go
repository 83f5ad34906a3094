package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TakaneWatch/internal/model"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func sampleStates() map[string]model.SymbolState {
	return map[string]model.SymbolState{
		"7203": {
			Code: "7203", Name: "トヨタ自動車", Market: "プライム（内国株式）",
			AllTimeHigh: 3890.5, AllTimeHighDate: date(2024, 3, 21),
			OneYearHigh: 3890.5, OneYearHighDate: date(2024, 3, 21),
			LastPrice: 3450, LastUpdate: date(2024, 6, 3),
		},
		"0001": {
			Code: "0001", Name: "テスト", Market: "スタンダード",
			AllTimeHigh: 120, AllTimeHighDate: date(2020, 1, 6),
			OneYearHigh: 95, OneYearHighDate: date(2024, 2, 1),
			LastPrice: 88, LastUpdate: date(2024, 6, 3),
		},
	}
}

func TestStore_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.csv")
	s := New(path)

	want := sampleStates()
	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("loaded %d states, want %d", len(got), len(want))
	}
	for code, w := range want {
		g, ok := got[code]
		if !ok {
			t.Fatalf("code %s missing after roundtrip", code)
		}
		if g != w {
			t.Errorf("state %s changed:\n got %+v\nwant %+v", code, g, w)
		}
	}
}

func TestStore_PreservesLeadingZeros(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.csv")
	s := New(path)
	if err := s.Save(sampleStates()); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "0001,") {
		t.Errorf("leading-zero code not preserved in file:\n%s", raw)
	}
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.csv"))
	got, err := s.Load()
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty store, got %d states", len(got))
	}
}

func TestStore_CorruptRowSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.csv")
	content := "code,name,market,all_time_high,all_time_high_date,one_year_high,one_year_high_date,last_price,last_update\n" +
		"7203,トヨタ自動車,プライム,3890.5,2024-03-21,3890.5,2024-03-21,3450,2024-06-03\n" +
		"6758,ソニーgrp,プライム,not-a-number,2024-03-21,100,2024-03-21,90,2024-06-03\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := New(path).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the bad row to be skipped, got %d states", len(got))
	}
	if _, ok := got["7203"]; !ok {
		t.Error("good row lost alongside the bad one")
	}
}

func TestStore_SavedFileIsWorldReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.csv")
	if err := New(path).Save(sampleStates()); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0644 {
		t.Errorf("file mode = %o, want 644", perm)
	}
}

func TestStore_SaveReplacesWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.csv")
	s := New(path)
	if err := s.Save(sampleStates()); err != nil {
		t.Fatal(err)
	}

	only := map[string]model.SymbolState{"7203": sampleStates()["7203"]}
	if err := s.Save(only); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected wholesale replace to drop absent codes, got %d", len(got))
	}
}
