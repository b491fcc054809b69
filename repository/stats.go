package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/himanshub16/upnext-live/radio"
)

// Stats aggregates the full history table. Refunded donations do not count
// towards the donated totals.
func (r *SQLRepository) Stats(ctx context.Context, now time.Time) (*radio.Stats, error) {
	var counts struct {
		Total    int64           `db:"total"`
		Donation int64           `db:"donation"`
		Reward   int64           `db:"reward"`
		Today    int64           `db:"today"`
		Average  sql.NullFloat64 `db:"average"`
	}
	dayStart := now.UTC().Truncate(24 * time.Hour)
	query := r.db.Rebind(`
	  select
		count(*) as total,
		coalesce(sum(case when channel = ? then 1 else 0 end), 0) as donation,
		coalesce(sum(case when channel = ? then 1 else 0 end), 0) as reward,
		coalesce(sum(case when finished_at >= ? then 1 else 0 end), 0) as today,
		avg(case when duration_seconds > 0 then duration_seconds end) as average
	  from history_items`)
	err := r.db.GetContext(ctx, &counts, query,
		string(radio.ChannelDonation), string(radio.ChannelReward), millis(dayStart))
	if err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}

	amounts := []struct {
		Currency string  `db:"currency"`
		Amount   float64 `db:"amount"`
	}{}
	query = r.db.Rebind(`
	  select donation_currency as currency, sum(donation_amount) as amount
	  from history_items
	  where channel = ? and refunded = ? and donation_amount is not null
	  group by donation_currency`)
	if err := r.db.SelectContext(ctx, &amounts, query, string(radio.ChannelDonation), false); err != nil {
		return nil, fmt.Errorf("select donated amounts: %w", err)
	}

	stats := &radio.Stats{
		TotalPlayed:     counts.Total,
		DonationPlayed:  counts.Donation,
		RewardPlayed:    counts.Reward,
		PlayedToday:     counts.Today,
		AverageDuration: int64(math.Round(counts.Average.Float64)),
		DonatedAmounts:  make(map[string]float64, len(amounts)),
	}
	for _, a := range amounts {
		stats.DonatedAmounts[a.Currency] = a.Amount
	}
	return stats, nil
}
