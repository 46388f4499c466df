// Package flow provides the administrative daily summary flow.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BTreeMap/SlimLine/internal/models"
	"github.com/BTreeMap/SlimLine/internal/store"
)

// TopFoodCount is how many calorie-mode queries the summary highlights.
const TopFoodCount = 3

// SummaryFlow aggregates one day of usage log activity into a report.
type SummaryFlow struct {
	store store.Store
	loc   *time.Location
}

// NewSummaryFlow creates a summary flow reporting in the given timezone.
// A nil location defaults to Asia/Tokyo, falling back to UTC.
func NewSummaryFlow(st store.Store, loc *time.Location) *SummaryFlow {
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("Asia/Tokyo")
		if err != nil {
			slog.Warn("SummaryFlow: failed to load Asia/Tokyo, using UTC", "error", err)
			loc = time.UTC
		}
	}
	return &SummaryFlow{store: st, loc: loc}
}

// Location returns the timezone reports are aggregated in.
func (f *SummaryFlow) Location() *time.Location {
	return f.loc
}

// BuildReport aggregates the usage log for the calendar day containing t.
func (f *SummaryFlow) BuildReport(ctx context.Context, t time.Time) (models.SummaryReport, error) {
	local := t.In(f.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, f.loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	records, err := f.store.GetUsageBetween(dayStart.Unix(), dayEnd.Unix())
	if err != nil {
		return models.SummaryReport{}, fmt.Errorf("failed to query usage log: %w", err)
	}

	report := models.SummaryReport{
		Date:       dayStart.Format("2006-01-02"),
		ModeCounts: make(map[models.ChatMode]int),
	}
	users := make(map[string]bool)
	foods := make(map[string]int)

	// Only inbound messages count as usage; outbound rows would double
	// every interaction.
	for _, rec := range records {
		if rec.Direction != models.DirectionIn {
			continue
		}
		report.TotalMessages++
		users[rec.UserID] = true
		report.ModeCounts[rec.Mode]++
		if rec.Mode == models.ModeCalorie {
			foods[strings.TrimSpace(rec.Body)]++
		}
	}
	report.UniqueUsers = len(users)
	report.TopFoods = topFoods(foods, TopFoodCount)

	slog.Debug("SummaryFlow.BuildReport: report built", "date", report.Date, "total", report.TotalMessages, "users", report.UniqueUsers)
	return report, nil
}

// RespondToday formats today's report for a chat reply.
func (f *SummaryFlow) RespondToday(ctx context.Context) (string, error) {
	report, err := f.BuildReport(ctx, time.Now())
	if err != nil {
		return "", err
	}
	return FormatReport(report), nil
}

// modeLabels are the Japanese display names used in the summary text.
var modeLabels = []struct {
	mode  models.ChatMode
	label string
}{
	{models.ModeCalorie, "カロリー"},
	{models.ModeQuiz, "クイズ"},
	{models.ModeArticle, "記事"},
	{models.ModeSummary, "まとめ"},
	{models.ModeHelp, "ヘルプ"},
}

// FormatReport renders a report as chat text.
func FormatReport(r models.SummaryReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s の利用まとめ\n", r.Date)
	fmt.Fprintf(&b, "・メッセージ数: %d\n", r.TotalMessages)
	fmt.Fprintf(&b, "・利用者数: %d\n", r.UniqueUsers)

	var parts []string
	for _, ml := range modeLabels {
		if count := r.ModeCounts[ml.mode]; count > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", ml.label, count))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, "・モード別: %s\n", strings.Join(parts, " / "))
	}

	if len(r.TopFoods) > 0 {
		var foods []string
		for _, fc := range r.TopFoods {
			foods = append(foods, fmt.Sprintf("%s(%d)", fc.Food, fc.Count))
		}
		fmt.Fprintf(&b, "・よく調べられた食べ物: %s\n", strings.Join(foods, "、"))
	}

	return strings.TrimRight(b.String(), "\n")
}

// topFoods returns the n most frequent foods, ties broken alphabetically
// for stable output.
func topFoods(foods map[string]int, n int) []models.FoodCount {
	var out []models.FoodCount
	for food, count := range foods {
		if food == "" {
			continue
		}
		out = append(out, models.FoodCount{Food: food, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Food < out[j].Food
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
