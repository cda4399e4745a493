// Package playtime turns a finished session's join/leave history into
// recommendation payouts for its players and its host.
package playtime

import (
	"time"

	"github.com/foxseedlab/playhost/internal/config"
	"github.com/foxseedlab/playhost/internal/repository"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Duration() time.Duration {
	if i.End.Before(i.Start) {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Payouts is the result of aggregating one session.
type Payouts struct {
	Players map[string]float64
	Host    float64
}

// Compute aggregates rec, which is expected to be finished at sessionEnd.
func Compute(rec repository.SessionRecord, sessionEnd time.Time, cfg config.Payout) Payouts {
	return Payouts{
		Players: PlayerPayouts(rec, sessionEnd, cfg),
		Host:    HostPayout(rec, sessionEnd, cfg),
	}
}

// PlayerPayouts pays each player for their own weighted time. Kicked and
// banned entries are not counted.
func PlayerPayouts(rec repository.SessionRecord, sessionEnd time.Time, cfg config.Payout) map[string]float64 {
	rangesByPlayer := make(map[string][]Interval)
	for _, p := range rec.Players {
		if p.LeaveReason.Punitive() {
			continue
		}
		rangesByPlayer[p.ID] = append(rangesByPlayer[p.ID], playerInterval(p, sessionEnd))
	}

	payouts := make(map[string]float64, len(rangesByPlayer))
	for playerID, ranges := range rangesByPlayer {
		minutes := WeightedDuration(ranges, rec.PlayTypeHistory, sessionEnd, cfg).Minutes()
		if minutes < cfg.MinimumMinutes {
			continue
		}
		payouts[playerID] = cfg.PlayerScorePerMinute*minutes + cfg.PlayerJoinBonus
	}
	return payouts
}

// HostPayout pays the host for the union of time during which at least one
// player was present. It returns 0 when below the minimum.
func HostPayout(rec repository.SessionRecord, sessionEnd time.Time, cfg config.Payout) float64 {
	ranges := make([]Interval, 0, len(rec.Players))
	for _, p := range rec.Players {
		ranges = append(ranges, playerInterval(p, sessionEnd))
	}
	periods := MergePeriods(ranges)
	minutes := WeightedDuration(periods, rec.PlayTypeHistory, sessionEnd, cfg).Minutes()
	if len(periods) == 0 || minutes < cfg.MinimumMinutes {
		return 0
	}
	return cfg.HostScorePerMinute*minutes + cfg.HostJoinBonus
}

func playerInterval(p repository.Player, sessionEnd time.Time) Interval {
	end := sessionEnd
	if p.LeaveTime != nil {
		end = *p.LeaveTime
	}
	return Interval{Start: p.JoinTime, End: end}
}

// MergePeriods folds ranges into disjoint periods. Ranges that overlap or
// touch are absorbed into one period.
func MergePeriods(ranges []Interval) []Interval {
	periods := make([]Interval, 0, len(ranges))
	for _, r := range ranges {
		if r.End.Before(r.Start) {
			continue
		}
		merged := r
		for i := len(periods) - 1; i >= 0; i-- {
			p := periods[i]
			if p.End.Before(merged.Start) || merged.End.Before(p.Start) {
				continue
			}
			if p.Start.Before(merged.Start) {
				merged.Start = p.Start
			}
			if p.End.After(merged.End) {
				merged.End = p.End
			}
			periods = append(periods[:i], periods[i+1:]...)
		}
		periods = append(periods, merged)
	}
	return periods
}

// TotalDuration sums the durations of already-disjoint periods.
func TotalDuration(periods []Interval) time.Duration {
	var total time.Duration
	for _, p := range periods {
		total += p.Duration()
	}
	return total
}

// WeightedDuration intersects ranges with each play-type segment of history
// and scales each segment's share by its configured multiplier. No segment
// extends past sessionEnd, so changes made while ending add no time.
func WeightedDuration(ranges []Interval, history []repository.PlayTypeChange, sessionEnd time.Time, cfg config.Payout) time.Duration {
	var total float64
	for i, entry := range history {
		segment := Interval{Start: entry.From, End: sessionEnd}
		if i+1 < len(history) && history[i+1].From.Before(sessionEnd) {
			segment.End = history[i+1].From
		}
		var covered time.Duration
		for _, r := range ranges {
			covered += overlap(segment, r)
		}
		total += float64(covered) * cfg.Multiplier(entry.Type)
	}
	return time.Duration(total)
}

func overlap(a, b Interval) time.Duration {
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}
