package playtime

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/foxseedlab/playhost/internal/config"
	"github.com/foxseedlab/playhost/internal/repository"
)

var base = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func atPtr(minutes int) *time.Time {
	t := at(minutes)
	return &t
}

func TestMergePeriods_TouchingRangesBecomeOne(t *testing.T) {
	periods := MergePeriods([]Interval{
		{Start: at(0), End: at(10)},
		{Start: at(10), End: at(20)},
	})
	if len(periods) != 1 {
		t.Fatalf("expected one period, got %d: %+v", len(periods), periods)
	}
	if !periods[0].Start.Equal(at(0)) || !periods[0].End.Equal(at(20)) {
		t.Fatalf("unexpected merged period: %+v", periods[0])
	}
}

func TestMergePeriods_BridgingRangeAbsorbsSeveral(t *testing.T) {
	periods := MergePeriods([]Interval{
		{Start: at(0), End: at(5)},
		{Start: at(10), End: at(15)},
		{Start: at(30), End: at(40)},
		{Start: at(3), End: at(12)},
	})
	if len(periods) != 2 {
		t.Fatalf("expected two periods, got %d: %+v", len(periods), periods)
	}
	if got := TotalDuration(periods); got != 25*time.Minute {
		t.Fatalf("expected 25m, got %v", got)
	}
}

func TestMergePeriods_UnionMatchesSamplingOracle(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	const horizon = 200
	for round := 0; round < 200; round++ {
		n := 1 + rng.IntN(8)
		ranges := make([]Interval, 0, n)
		covered := make([]bool, horizon)
		for i := 0; i < n; i++ {
			start := rng.IntN(horizon)
			end := start + rng.IntN(horizon-start+1)
			ranges = append(ranges, Interval{Start: at(start), End: at(end)})
			for m := start; m < end; m++ {
				covered[m] = true
			}
		}
		var want time.Duration
		for _, c := range covered {
			if c {
				want += time.Minute
			}
		}
		periods := MergePeriods(ranges)
		if got := TotalDuration(periods); got != want {
			t.Fatalf("round %d: union %v, oracle %v, ranges %+v", round, got, want, ranges)
		}
		for i := range periods {
			for j := range periods {
				if i != j && overlap(periods[i], periods[j]) > 0 {
					t.Fatalf("round %d: periods overlap: %+v", round, periods)
				}
			}
		}
	}
}

func TestWeightedDuration_SingleEntryMultiplierOneIsRaw(t *testing.T) {
	history := []repository.PlayTypeChange{{Type: "casual", From: at(0)}}
	ranges := []Interval{{Start: at(3), End: at(47)}, {Start: at(50), End: at(61)}}
	cfg := config.Payout{PlayTypeMultipliers: map[string]float64{"casual": 1}}

	got := WeightedDuration(ranges, history, at(90), cfg)
	if got != 55*time.Minute {
		t.Fatalf("expected 55m, got %v", got)
	}
}

func TestWeightedDuration_SplitsAcrossPlayTypes(t *testing.T) {
	history := []repository.PlayTypeChange{
		{Type: "casual", From: at(0)},
		{Type: "ranked", From: at(30)},
	}
	ranges := []Interval{{Start: at(10), End: at(50)}}
	cfg := config.Payout{PlayTypeMultipliers: map[string]float64{"ranked": 2}}

	// 20m casual at 1x plus 20m ranked at 2x.
	got := WeightedDuration(ranges, history, at(60), cfg)
	if got != 60*time.Minute {
		t.Fatalf("expected 60m, got %v", got)
	}
}

func TestWeightedDuration_ChangeAfterSessionEndAddsNothing(t *testing.T) {
	history := []repository.PlayTypeChange{
		{Type: "casual", From: at(0)},
		{Type: "hardcore", From: at(90)},
	}
	// The player stays joined until destroy, well after the session ended at 30m.
	ranges := []Interval{{Start: at(0), End: at(95)}}
	cfg := config.Payout{PlayTypeMultipliers: map[string]float64{"hardcore": 3}}

	got := WeightedDuration(ranges, history, at(30), cfg)
	if got != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", got)
	}
}

func TestPlayerPayouts(t *testing.T) {
	rec := repository.SessionRecord{
		PlayTypeHistory: []repository.PlayTypeChange{{Type: "casual", From: at(0)}},
		Players: []repository.Player{
			{ID: "alice", JoinTime: at(0), LeaveTime: atPtr(10), LeaveReason: repository.LeaveReasonLeft},
			{ID: "alice", JoinTime: at(20), LeaveTime: atPtr(40), LeaveReason: repository.LeaveReasonEnded},
			{ID: "bob", JoinTime: at(0), LeaveTime: atPtr(3), LeaveReason: repository.LeaveReasonLeft},
			{ID: "carol", JoinTime: at(0), LeaveTime: atPtr(30), LeaveReason: repository.LeaveReasonKicked},
		},
	}
	cfg := config.Payout{PlayerScorePerMinute: 0.5, PlayerJoinBonus: 2, MinimumMinutes: 5}

	payouts := PlayerPayouts(rec, at(40), cfg)
	if got := payouts["alice"]; got != 0.5*30+2 {
		t.Fatalf("unexpected alice payout: %v", got)
	}
	if _, ok := payouts["bob"]; ok {
		t.Fatal("bob is below the minimum and should not be paid")
	}
	if _, ok := payouts["carol"]; ok {
		t.Fatal("kicked player should not be paid")
	}
}

func TestHostPayout_RejoinDoesNotDoubleCount(t *testing.T) {
	rec := repository.SessionRecord{
		PlayTypeHistory: []repository.PlayTypeChange{{Type: "casual", From: at(0)}},
		Players: []repository.Player{
			{ID: "alice", JoinTime: at(0), LeaveTime: atPtr(10), LeaveReason: repository.LeaveReasonLeft},
			{ID: "alice", JoinTime: at(10), LeaveTime: atPtr(20), LeaveReason: repository.LeaveReasonLeft},
			{ID: "bob", JoinTime: at(5), LeaveTime: atPtr(15), LeaveReason: repository.LeaveReasonLeft},
		},
	}
	cfg := config.Payout{HostScorePerMinute: 1, HostJoinBonus: 10, MinimumMinutes: 5}

	if got := HostPayout(rec, at(60), cfg); got != 20+10 {
		t.Fatalf("expected 30, got %v", got)
	}
}

func TestHostPayout_KickedPlayerCountsOnlyUntilKick(t *testing.T) {
	rec := repository.SessionRecord{
		PlayTypeHistory: []repository.PlayTypeChange{{Type: "casual", From: at(0)}},
		Players: []repository.Player{
			{ID: "alice", JoinTime: at(0), LeaveTime: atPtr(10), LeaveReason: repository.LeaveReasonLeft},
			{ID: "mallory", JoinTime: at(20), LeaveTime: atPtr(25), LeaveReason: repository.LeaveReasonKicked},
		},
	}
	cfg := config.Payout{HostScorePerMinute: 1}

	if got := HostPayout(rec, at(60), cfg); got != 15 {
		t.Fatalf("expected 15, got %v", got)
	}
	if _, ok := PlayerPayouts(rec, at(60), cfg)["mallory"]; ok {
		t.Fatal("kicked player should not be paid")
	}
}

func TestHostPayout_NoPlayers(t *testing.T) {
	rec := repository.SessionRecord{
		PlayTypeHistory: []repository.PlayTypeChange{{Type: "casual", From: at(0)}},
	}
	cfg := config.Payout{HostScorePerMinute: 1, HostJoinBonus: 10}
	if got := HostPayout(rec, at(60), cfg); got != 0 {
		t.Fatalf("expected 0 for an empty session, got %v", got)
	}
}
