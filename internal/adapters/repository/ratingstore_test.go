package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/pokerank/internal/domain/model"
)

func rating(score float64) model.Rating {
	return model.Rating{Mu: score + model.MinSigma, Sigma: model.MinSigma}
}

func TestRatingStore_GetDefaultsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	got := store.Get(ctx, "missingno")
	if got != model.DefaultRating() {
		t.Errorf("expected default rating, got %+v", got)
	}
	if store.Count(ctx) != 0 {
		t.Errorf("expected count 0 after read, got %d", store.Count(ctx))
	}
	if store.Writes() != 0 {
		t.Errorf("expected 0 writes after read, got %d", store.Writes())
	}
}

func TestRatingStore_SetAndRanking(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	for id, score := range map[model.ItemID]float64{"a": 30, "b": 20, "c": 25} {
		if err := store.Set(ctx, id, rating(score)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	order := store.Order(ctx)
	want := []model.ItemID{"a", "c", "b"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}

	rank, err := store.Rank(ctx, "c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rank != 2 {
		t.Errorf("expected rank 2, got %d", rank)
	}

	// Overwrite moves the item.
	if err := store.Set(ctx, "b", rating(40)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rank, _ := store.Rank(ctx, "b"); rank != 1 {
		t.Errorf("expected b at rank 1 after overwrite, got %d", rank)
	}
	if store.Count(ctx) != 3 {
		t.Errorf("expected count 3, got %d", store.Count(ctx))
	}
}

func TestRatingStore_RejectsInvalidRatings(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	cases := []model.Rating{
		{Mu: 25, Sigma: 0},
		{Mu: 25, Sigma: -2},
		{Mu: math.NaN(), Sigma: 1},
		{Mu: 25, Sigma: math.Inf(1)},
	}
	for _, r := range cases {
		if err := store.Set(ctx, "x", r); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("expected ErrInvalidRating for %+v, got %v", r, err)
		}
	}
	if err := store.Set(ctx, "", rating(1)); !errors.Is(err, ErrEmptyID) {
		t.Errorf("expected ErrEmptyID, got %v", err)
	}
	if store.Writes() != 0 {
		t.Errorf("expected no writes, got %d", store.Writes())
	}
}

func TestRatingStore_TieBreaking(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	// Same score: fewer battles first, then insertion order.
	_ = store.Set(ctx, "first", rating(10))
	_ = store.Set(ctx, "second", rating(10))
	_ = store.Set(ctx, "veteran", rating(10))
	_ = store.IncrementBattles(ctx, "veteran")
	_ = store.IncrementBattles(ctx, "first")
	_ = store.IncrementBattles(ctx, "second")
	_ = store.IncrementBattles(ctx, "veteran")

	order := store.Order(ctx)
	want := []model.ItemID{"first", "second", "veteran"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}

	// Deterministic across calls.
	for i := 0; i < 5; i++ {
		again := store.Order(ctx)
		for j := range order {
			if again[j] != order[j] {
				t.Fatalf("ranking not deterministic: %v vs %v", order, again)
			}
		}
	}
}

func TestRatingStore_SeedAndIncrement(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	created, err := store.Seed(ctx, "eevee")
	if err != nil || !created {
		t.Fatalf("expected seed to create, got created=%v err=%v", created, err)
	}
	created, _ = store.Seed(ctx, "eevee")
	if created {
		t.Error("expected second seed to be a no-op")
	}
	if store.Writes() != 1 {
		t.Errorf("expected 1 write, got %d", store.Writes())
	}

	if err := store.IncrementBattles(ctx, "jolteon"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := store.Record(ctx, "jolteon")
	if !ok {
		t.Fatal("expected jolteon to be seeded by IncrementBattles")
	}
	if rec.BattleCount != 1 || rec.Rating != model.DefaultRating() {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestRatingStore_BatchNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	var calls int
	cancel := store.Subscribe(func(context.Context) { calls++ })
	defer cancel()

	store.StartBatch()
	store.StartBatch()
	for i := 0; i < 10; i++ {
		_ = store.Set(ctx, model.ItemID(fmt.Sprintf("p%d", i)), rating(float64(i)))
	}
	store.EndBatch(ctx)
	if calls != 0 {
		t.Fatalf("expected no notification inside nested batch, got %d", calls)
	}
	store.EndBatch(ctx)
	if calls != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", calls)
	}

	// An empty batch does not notify.
	store.StartBatch()
	store.EndBatch(ctx)
	if calls != 1 {
		t.Errorf("expected empty batch to stay silent, got %d", calls)
	}

	// Writes outside a batch notify immediately.
	_ = store.Set(ctx, "solo", rating(1))
	if calls != 2 {
		t.Errorf("expected immediate notification, got %d", calls)
	}

	// Unbalanced EndBatch is ignored.
	store.EndBatch(ctx)
	if calls != 2 {
		t.Errorf("expected unbalanced EndBatch to be ignored, got %d", calls)
	}

	cancel()
	_ = store.Set(ctx, "after", rating(1))
	if calls != 2 {
		t.Errorf("expected cancelled listener to stay silent, got %d", calls)
	}
}

func TestRatingStore_ListenerCanRead(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	var seen int
	store.Subscribe(func(ctx context.Context) { seen = store.Count(ctx) })
	_ = store.Set(ctx, "a", rating(1))
	if seen != 1 {
		t.Errorf("expected listener to observe the write, got %d", seen)
	}
}

func TestRatingStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()
	_ = store.Set(ctx, "a", rating(3))
	_ = store.Set(ctx, "b", rating(2))

	if !store.Remove(ctx, "a") {
		t.Fatal("expected a to be removed")
	}
	if store.Remove(ctx, "a") {
		t.Error("expected second remove to report false")
	}
	if _, err := store.Rank(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if store.Count(ctx) != 1 {
		t.Errorf("expected 1 item, got %d", store.Count(ctx))
	}
}

func TestRatingStore_TopN(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()
	for i := 0; i < 20; i++ {
		_ = store.Set(ctx, model.ItemID(fmt.Sprintf("p%02d", i)), rating(float64(i)))
	}

	top, err := store.TopN(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 3 || top[0].ID != "p19" || top[2].ID != "p17" {
		t.Errorf("unexpected top 3: %+v", top)
	}
	if top[0].Score != 19 {
		t.Errorf("expected score 19, got %v", top[0].Score)
	}
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	all, _ := store.TopN(ctx, 100)
	if len(all) != 20 {
		t.Errorf("expected 20 items, got %d", len(all))
	}
}

func TestRatingStore_Restore(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()
	_ = store.Set(ctx, "old", rating(1))

	var calls int
	store.Subscribe(func(context.Context) { calls++ })

	err := store.Restore(ctx, map[model.ItemID]model.Record{
		"b": {Rating: rating(5), BattleCount: 2},
		"a": {Rating: rating(5), BattleCount: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected restore to skip notifications, got %d", calls)
	}
	if store.Has(ctx, "old") {
		t.Error("expected restore to replace state")
	}
	order := store.Order(ctx)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("expected ties sequenced by id, got %v", order)
	}

	bad := map[model.ItemID]model.Record{"x": {Rating: model.Rating{Mu: 1, Sigma: 0}}}
	if err := store.Restore(ctx, bad); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating, got %v", err)
	}
}

func TestRatingStore_RandomizedOrderingInvariant(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		id := model.ItemID(fmt.Sprintf("p%03d", rng.Intn(150)))
		switch rng.Intn(4) {
		case 0:
			_ = store.IncrementBattles(ctx, id)
		case 1:
			store.Remove(ctx, id)
		default:
			_ = store.Set(ctx, id, model.Rating{Mu: rng.Float64() * 50, Sigma: 1 + rng.Float64()*7})
		}
	}

	ranked := store.Ranking(ctx)
	if len(ranked) != store.Count(ctx) {
		t.Fatalf("ranking size %d != count %d", len(ranked), store.Count(ctx))
	}
	sorted := sort.SliceIsSorted(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].BattleCount < ranked[j].BattleCount
	})
	if !sorted {
		t.Fatal("ranking is not sorted by score desc")
	}
	for i, it := range ranked {
		if r, _ := store.Rank(ctx, it.ID); r != i+1 {
			t.Fatalf("rank of %s: expected %d, got %d", it.ID, i+1, r)
		}
	}
}

func TestRatingStore_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()
	for i := 0; i < 50; i++ {
		_ = store.Set(ctx, model.ItemID(fmt.Sprintf("p%d", i)), rating(float64(i)))
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if g == 0 {
					_ = store.Set(ctx, "p0", rating(float64(i)))
					continue
				}
				_ = store.Ranking(ctx)
				_ = store.Get(ctx, "p0")
				_ = store.GetAll(ctx)
			}
		}(g)
	}
	wg.Wait()
	if store.Count(ctx) != 50 {
		t.Errorf("expected 50 items, got %d", store.Count(ctx))
	}
}
