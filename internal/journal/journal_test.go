package journal

import (
	"context"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func fixedNow(j *Journal, at time.Time) {
	j.now = func() time.Time { return at }
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	j1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := j1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if _, err := j1.AddMeal(context.Background(), Meal{SessionID: "s1", Calories: 100}); err != nil {
		t.Fatalf("AddMeal: %v", err)
	}
	j1.Close()

	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer j2.Close()

	v2, err := j2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}

	meals, err := j2.ListMeals(context.Background(), "s1", 0)
	if err != nil {
		t.Fatalf("ListMeals: %v", err)
	}
	if len(meals) != 1 {
		t.Errorf("got %d meals after reopen, want 1", len(meals))
	}
}

func TestRecordAndList(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	for i, cal := range []int{300, 450, 120} {
		fixedNow(j, base.Add(time.Duration(i)*time.Hour))
		if err := j.RecordMeal(ctx, "s1", cal, "food"); err != nil {
			t.Fatalf("RecordMeal: %v", err)
		}
	}
	if err := j.RecordMeal(ctx, "s2", 999, ""); err != nil {
		t.Fatalf("RecordMeal: %v", err)
	}

	meals, err := j.ListMeals(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("ListMeals: %v", err)
	}
	if len(meals) != 3 {
		t.Fatalf("got %d meals, want 3", len(meals))
	}
	if meals[0].Calories != 120 || meals[2].Calories != 300 {
		t.Errorf("meals not newest first: %+v", meals)
	}
	for _, m := range meals {
		if m.ID == "" || m.SessionID != "s1" {
			t.Errorf("unexpected meal %+v", m)
		}
	}

	limited, err := j.ListMeals(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("ListMeals: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit ignored: got %d", len(limited))
	}
}

func TestListMeals_Empty(t *testing.T) {
	j := openTestJournal(t)

	meals, err := j.ListMeals(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("ListMeals: %v", err)
	}
	if meals == nil || len(meals) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", meals)
	}
}

func TestAddMeal_RequiresSession(t *testing.T) {
	j := openTestJournal(t)

	if _, err := j.AddMeal(context.Background(), Meal{Calories: 10}); err == nil {
		t.Fatal("expected error for meal without session id")
	}
}

func TestAddMeal_KeepsExplicitFields(t *testing.T) {
	j := openTestJournal(t)
	at := time.Date(2025, 6, 1, 8, 30, 15, 0, time.UTC)

	m, err := j.AddMeal(context.Background(), Meal{ID: "fixed", SessionID: "s1", Calories: 5, Food: "chai", CreatedAt: at})
	if err != nil {
		t.Fatalf("AddMeal: %v", err)
	}
	if m.ID != "fixed" || !m.CreatedAt.Equal(at) {
		t.Errorf("AddMeal = %+v", m)
	}

	meals, _ := j.ListMeals(context.Background(), "s1", 1)
	if len(meals) != 1 || meals[0].ID != m.ID || meals[0].Food != "chai" || !meals[0].CreatedAt.Equal(at) {
		t.Errorf("stored meal = %+v, want %+v", meals, m)
	}
}

func TestDailyTotals(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	add := func(at time.Time, cal int) {
		t.Helper()
		if _, err := j.AddMeal(ctx, Meal{SessionID: "s1", Calories: cal, CreatedAt: at}); err != nil {
			t.Fatalf("AddMeal: %v", err)
		}
	}
	add(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), 300)
	add(time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC), 700)
	add(time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC), 450)
	add(time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC), 2000)

	fixedNow(j, time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC))

	all, err := j.DailyTotals(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("DailyTotals: %v", err)
	}
	want := []DayTotal{{"2025-05-20", 2000}, {"2025-06-01", 1000}, {"2025-06-03", 450}}
	if len(all) != len(want) {
		t.Fatalf("got %+v, want %+v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("totals[%d] = %+v, want %+v", i, all[i], want[i])
		}
	}

	recent, err := j.DailyTotals(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("DailyTotals: %v", err)
	}
	if len(recent) != 2 || recent[0].Day != "2025-06-01" {
		t.Errorf("last 3 days = %+v", recent)
	}
}

func TestDeleteSession(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	j.RecordMeal(ctx, "s1", 1, "")
	j.RecordMeal(ctx, "s1", 2, "")
	j.RecordMeal(ctx, "s2", 3, "")

	n, err := j.DeleteSession(ctx, "s1")
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	left, _ := j.ListMeals(ctx, "s2", 0)
	if len(left) != 1 {
		t.Errorf("s2 meals = %d, want 1", len(left))
	}
}
