package replay

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

var start = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func validRecord() Record {
	r := NewRecorder(Meta{PilotID: "vanguard", PilotName: "Vanguard", Module: "standard_frame", Stage: 1, Difficulty: "normal"}, start)
	r.Add(1200, "player", "ability", "Strike hits 1 target for 12")
	r.Add(2500, "Scrap Drone", "attack", "6 damage")
	return r.Finish(OutcomeVictory, 90000, FinalStats{DamageDealt: 12, EnemiesKilled: 1, TurnsElapsed: 1})
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{90000, "1:30"},
		{5000, "0:05"},
		{0, "0:00"},
		{59999, "0:59"},
		{3723000, "1:02:03"},
		{-10, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestValidateAcceptsRecorderOutput(t *testing.T) {
	if err := Validate(mustJSON(t, validRecord())); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
}

func TestValidateMissingFields(t *testing.T) {
	base := mustJSON(t, validRecord())
	for _, field := range requiredFields {
		t.Run(field, func(t *testing.T) {
			var m map[string]any
			if err := json.Unmarshal(base, &m); err != nil {
				t.Fatal(err)
			}
			delete(m, field)
			err := Validate(mustJSON(t, m))
			if !errors.Is(err, ErrInvalidReplay) {
				t.Fatalf("err = %v, want ErrInvalidReplay", err)
			}
			if !strings.Contains(err.Error(), field) {
				t.Errorf("error %q does not name %s", err, field)
			}
		})
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
		reason string
	}{
		{"empty actions", func(r *Record) { r.Actions = []Action{} }, "actions is empty"},
		{"bad outcome", func(r *Record) { r.Outcome = "DRAW" }, "outcome"},
		{"lowercase outcome", func(r *Record) { r.Outcome = "victory" }, "outcome"},
		{"action without turn", func(r *Record) { r.Actions[0].Turn = 0 }, "no turn"},
		{"action without timestamp", func(r *Record) { r.Actions[1].Timestamp = 0 }, "no timestamp"},
		{"action without actor", func(r *Record) { r.Actions[0].Actor = "" }, "no actor"},
		{"action without result", func(r *Record) { r.Actions[0].Result = "" }, "no result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := Validate(mustJSON(t, rec))
			if !errors.Is(err, ErrInvalidReplay) {
				t.Fatalf("err = %v, want ErrInvalidReplay", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q does not mention %q", err, tt.reason)
			}
		})
	}

	if err := Validate([]byte("[1,2]")); !errors.Is(err, ErrInvalidReplay) {
		t.Errorf("array payload err = %v", err)
	}
	if err := Validate([]byte(`{"id":null}`)); !errors.Is(err, ErrInvalidReplay) {
		t.Errorf("null id err = %v", err)
	}
}

func TestImportDuplicateID(t *testing.T) {
	rec := validRecord()
	raw := mustJSON(t, rec)
	now := start.Add(time.Hour)

	fresh, err := Import(nil, raw, now)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if fresh.ID != rec.ID {
		t.Errorf("fresh import changed id to %s", fresh.ID)
	}

	dup, err := Import([]Record{rec}, raw, now)
	if err != nil {
		t.Fatalf("import duplicate: %v", err)
	}
	want := rec.ID + "-import-" + "1773493200000"
	if dup.ID != want {
		t.Errorf("duplicate id = %s, want %s", dup.ID, want)
	}

	if _, err := Import(nil, []byte(`{}`), now); !errors.Is(err, ErrInvalidReplay) {
		t.Errorf("invalid import err = %v", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	rec := validRecord()
	data, err := Export(rec)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	back, err := Import(nil, data, start)
	if err != nil {
		t.Fatalf("import exported: %v", err)
	}
	if back.ID != rec.ID || len(back.Actions) != 2 || back.FinalStats != rec.FinalStats {
		t.Errorf("round trip = %+v", back)
	}
}

func TestRecorder(t *testing.T) {
	rec := validRecord()
	if rec.Actions[0].Turn != 1 || rec.Actions[1].Turn != 2 {
		t.Errorf("turns = %d,%d", rec.Actions[0].Turn, rec.Actions[1].Turn)
	}
	if rec.Actions[0].Timestamp != start.UnixMilli()+1200 {
		t.Errorf("timestamp = %d", rec.Actions[0].Timestamp)
	}
	if rec.Timestamp != start.UnixMilli() || rec.Duration != 90000 || rec.Outcome != OutcomeVictory {
		t.Errorf("record = %+v", rec)
	}
}

func TestAppendBounded(t *testing.T) {
	var list []Record
	for i := 0; i < 5; i++ {
		list = Append(list, Record{ID: string(rune('a' + i))}, 3)
	}
	if len(list) != 3 || list[0].ID != "c" || list[2].ID != "e" {
		t.Errorf("list = %+v", list)
	}
	if _, ok := Find(list, "d"); !ok {
		t.Error("Find missed d")
	}
}
