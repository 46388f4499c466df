package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/SlimLine/internal/models"
	"github.com/BTreeMap/SlimLine/internal/store"
)

func TestBuildReportAggregatesOneDay(t *testing.T) {
	st := store.NewInMemoryStore()
	loc := time.UTC
	f := NewSummaryFlow(st, loc)

	day := time.Date(2026, 8, 30, 12, 0, 0, 0, loc)
	dayStart := time.Date(2026, 8, 30, 0, 0, 0, 0, loc)

	records := []models.UsageRecord{
		{ID: "1", UserID: "U1", Direction: models.DirectionIn, Mode: models.ModeCalorie, Body: "ラーメン", Time: dayStart.Unix() + 100},
		{ID: "2", UserID: "U1", Direction: models.DirectionOut, Mode: models.ModeCalorie, Body: "約500kcal", Time: dayStart.Unix() + 101},
		{ID: "3", UserID: "U2", Direction: models.DirectionIn, Mode: models.ModeCalorie, Body: "ラーメン", Time: dayStart.Unix() + 200},
		{ID: "4", UserID: "U2", Direction: models.DirectionIn, Mode: models.ModeQuiz, Body: "クイズ", Time: dayStart.Unix() + 300},
		{ID: "5", UserID: "U3", Direction: models.DirectionIn, Mode: models.ModeCalorie, Body: "カレー", Time: dayStart.Unix() + 400},
		// Previous day must be excluded
		{ID: "6", UserID: "U9", Direction: models.DirectionIn, Mode: models.ModeCalorie, Body: "うどん", Time: dayStart.Unix() - 100},
		// Next day must be excluded
		{ID: "7", UserID: "U9", Direction: models.DirectionIn, Mode: models.ModeCalorie, Body: "そば", Time: dayStart.Add(24 * time.Hour).Unix()},
	}
	for _, rec := range records {
		if err := st.AddUsage(rec); err != nil {
			t.Fatalf("AddUsage: %v", err)
		}
	}

	report, err := f.BuildReport(context.Background(), day)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	if report.Date != "2026-08-30" {
		t.Errorf("unexpected date: %s", report.Date)
	}
	if report.TotalMessages != 4 {
		t.Errorf("expected 4 inbound messages, got %d", report.TotalMessages)
	}
	if report.UniqueUsers != 3 {
		t.Errorf("expected 3 unique users, got %d", report.UniqueUsers)
	}
	if report.ModeCounts[models.ModeCalorie] != 3 || report.ModeCounts[models.ModeQuiz] != 1 {
		t.Errorf("unexpected mode counts: %+v", report.ModeCounts)
	}
	if len(report.TopFoods) == 0 || report.TopFoods[0].Food != "ラーメン" || report.TopFoods[0].Count != 2 {
		t.Errorf("unexpected top foods: %+v", report.TopFoods)
	}
}

func TestFormatReport(t *testing.T) {
	report := models.SummaryReport{
		Date:          "2026-08-30",
		TotalMessages: 4,
		UniqueUsers:   3,
		ModeCounts:    map[models.ChatMode]int{models.ModeCalorie: 3, models.ModeQuiz: 1},
		TopFoods:      []models.FoodCount{{Food: "ラーメン", Count: 2}},
	}
	text := FormatReport(report)

	for _, want := range []string{"2026-08-30", "メッセージ数: 4", "利用者数: 3", "カロリー 3", "クイズ 1", "ラーメン(2)"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in report:\n%s", want, text)
		}
	}
}

func TestTopFoodsOrderingAndLimit(t *testing.T) {
	foods := map[string]int{"うどん": 1, "そば": 3, "ラーメン": 3, "カレー": 2, "": 5}
	got := topFoods(foods, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 foods, got %d", len(got))
	}
	// Count descending, ties alphabetical; empty keys dropped
	if got[0].Food != "そば" || got[1].Food != "ラーメン" || got[2].Food != "カレー" {
		t.Errorf("unexpected order: %+v", got)
	}
}
