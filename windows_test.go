package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constMultiplier(v float64) CapabilityMultiplier {
	return func(capability CapabilityScore, sample WeatherSample, crop string) float64 {
		return v
	}
}

func slotWindow(day time.Time, startHour, endHour int, recommendation WindowRecommendation, confidence float64, priority int) HarvestWindow {
	return HarvestWindow{
		Start:          time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, time.UTC),
		End:            time.Date(day.Year(), day.Month(), day.Day(), endHour, 0, 0, 0, time.UTC),
		Recommendation: recommendation,
		Confidence:     confidence,
		Priority:       priority,
	}
}

func TestGenerateWindowsFourSlotsPerDay(t *testing.T) {
	scheduler := newWindowScheduler(constMultiplier(0.9), testLogger())
	forecast := testForecast(testField("field", 50, -100), 2, time.Hour)

	windows := scheduler.GenerateWindows(CapabilityScore{Overall: 1.0}, forecast, "wheat")

	require.Len(t, windows, 8)
	wantHours := [4][2]int{{6, 10}, {10, 14}, {14, 18}, {18, 20}}
	for i, want := range wantHours {
		assert.Equal(t, want[0], windows[i].Start.Hour())
		assert.Equal(t, want[1], windows[i].End.Hour())
		assert.Equal(t, WindowOptimal, windows[i].Recommendation)
		assert.InDelta(t, 0.9, windows[i].Confidence, 1e-9)
		assert.Equal(t, priorityOptimal, windows[i].Priority)
	}
	// Day two ranks one priority point lower.
	assert.Equal(t, priorityOptimal-1, windows[4].Priority)
}

func TestGenerateWindowsDropsAvoidSlots(t *testing.T) {
	scheduler := newWindowScheduler(constMultiplier(0.3), testLogger())
	forecast := testForecast(testField("field", 50, -100), 3, time.Hour)

	windows := scheduler.GenerateWindows(CapabilityScore{Overall: 1.0}, forecast, "wheat")
	assert.Empty(t, windows)
}

func TestGenerateWindowsRecordsConditions(t *testing.T) {
	scheduler := newWindowScheduler(constMultiplier(0.7), testLogger())
	forecast := testForecast(testField("field", 50, -100), 1, time.Hour)

	windows := scheduler.GenerateWindows(CapabilityScore{Overall: 1.0}, forecast, "wheat")

	require.NotEmpty(t, windows)
	assert.Equal(t, 22.0, windows[0].Conditions["temperature_c"])
	assert.Equal(t, 10.0, windows[0].Conditions["wind_speed_kmh"])
}

func TestRecommendationBands(t *testing.T) {
	tests := []struct {
		multiplier float64
		want       WindowRecommendation
	}{
		{0.95, WindowOptimal},
		{0.8, WindowOptimal},
		{0.79, WindowAcceptable},
		{0.6, WindowAcceptable},
		{0.59, WindowMarginal},
		{0.4, WindowMarginal},
		{0.39, WindowAvoid},
		{0.0, WindowAvoid},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, recommendationFor(tt.multiplier), "multiplier %v", tt.multiplier)
	}
}

func TestSelectBestWindowsEliminatesOverlaps(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	windows := []HarvestWindow{
		slotWindow(day, 6, 10, WindowOptimal, 0.9, 30),
		slotWindow(day, 8, 12, WindowOptimal, 0.8, 30), // overlaps the first
		slotWindow(day, 10, 14, WindowAcceptable, 0.7, 20),
	}

	selected := selectBestWindows(windows, 10)

	require.Len(t, selected, 2)
	assert.Equal(t, 6, selected[0].Start.Hour())
	assert.Equal(t, 10, selected[1].Start.Hour())
}

func TestSelectBestWindowsOrdersByPriorityThenConfidence(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)
	windows := []HarvestWindow{
		slotWindow(day, 6, 10, WindowMarginal, 0.5, 10),
		slotWindow(next, 6, 10, WindowOptimal, 0.85, 29),
		slotWindow(day, 10, 14, WindowOptimal, 0.95, 30),
		slotWindow(day, 14, 18, WindowOptimal, 0.9, 30),
	}

	selected := selectBestWindows(windows, 10)

	require.Len(t, selected, 4)
	assert.Equal(t, 0.95, selected[0].Confidence)
	assert.Equal(t, 0.9, selected[1].Confidence)
	assert.Equal(t, 0.85, selected[2].Confidence)
	assert.Equal(t, 0.5, selected[3].Confidence)
}

func TestSelectBestWindowsRespectsMaxCount(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	var windows []HarvestWindow
	for i := 0; i < 6; i++ {
		windows = append(windows, slotWindow(day.AddDate(0, 0, i), 6, 10, WindowOptimal, 0.9, 30-i))
	}

	selected := selectBestWindows(windows, 3)

	require.Len(t, selected, 3)
	assert.Equal(t, 30, selected[0].Priority)
	assert.Equal(t, 28, selected[2].Priority)
}

func TestSelectBestWindowsStableOnFullTies(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	first := slotWindow(day, 6, 10, WindowOptimal, 0.9, 30)
	first.Conditions = map[string]any{"order": 1}
	second := slotWindow(day.AddDate(0, 0, 1), 6, 10, WindowOptimal, 0.9, 30)
	second.Conditions = map[string]any{"order": 2}

	selected := selectBestWindows([]HarvestWindow{first, second}, 10)

	require.Len(t, selected, 2)
	assert.Equal(t, 1, selected[0].Conditions["order"])
	assert.Equal(t, 2, selected[1].Conditions["order"])
}

func TestSelectBestWindowsDoesNotMutateInput(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	windows := []HarvestWindow{
		slotWindow(day, 6, 10, WindowMarginal, 0.5, 10),
		slotWindow(day, 10, 14, WindowOptimal, 0.9, 30),
	}

	_ = selectBestWindows(windows, 10)

	assert.Equal(t, 10, windows[0].Priority, "input slice order must be preserved")
}

func TestHarvestWindowOverlaps(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	morning := slotWindow(day, 6, 10, WindowOptimal, 0.9, 30)
	midday := slotWindow(day, 10, 14, WindowOptimal, 0.9, 30)
	overlapping := slotWindow(day, 8, 12, WindowOptimal, 0.9, 30)

	assert.False(t, morning.Overlaps(midday), "windows that only touch do not overlap")
	assert.False(t, midday.Overlaps(morning))
	assert.True(t, morning.Overlaps(overlapping))
	assert.True(t, overlapping.Overlaps(morning))
}
