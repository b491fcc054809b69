package radio

import (
	"context"
	"strings"
	"time"

	"github.com/himanshub16/upnext-live/logging"
)

// DonationEvent is a tip forwarded by the event source.
type DonationEvent struct {
	ID        string
	Username  string
	Amount    float64
	Currency  string
	Message   string
	Timestamp time.Time
}

// RedemptionEvent is a reward redemption forwarded by the event source.
type RedemptionEvent struct {
	ID          string
	Username    string
	RewardTitle string
	Input       string
	Timestamp   time.Time
}

// HandleDonation turns a tip into a donation-channel submission. A tip whose
// message carries no usable reference only earns a thank-you notification.
func (r *Radio) HandleDonation(ctx context.Context, ev DonationEvent) (*Request, error) {
	l := logging.Ctx(ctx)
	currency := ev.Currency
	if currency == "" {
		currency = "USD"
	}
	ref, ok := r.resolver.FindReference(ev.Message)
	if !ok {
		l.Warn().Str(logging.FieldRequester, ev.Username).Msg("no song request found in donation")
		r.notify(ctx, strings.ToLower(ev.Username), noReferenceDonationMessage(ev.Amount, currency))
		return nil, nil
	}
	req, _, err := r.Submit(ctx, RawSubmission{
		ID:            ev.ID,
		Reference:     ref,
		RequesterName: ev.Username,
		Channel:       ChannelDonation,
		Donation:      &DonationInfo{Amount: ev.Amount, Currency: currency},
		SubmittedAt:   ev.Timestamp,
	}, false)
	return req, err
}

// HandleRedemption turns a reward redemption into a reward-channel
// submission. Redemptions of other rewards are ignored when a target reward
// title is configured.
func (r *Radio) HandleRedemption(ctx context.Context, ev RedemptionEvent) (*Request, error) {
	l := logging.Ctx(ctx)
	if r.rewardTitle != "" && ev.RewardTitle != r.rewardTitle {
		l.Debug().Str("reward", ev.RewardTitle).Msg("ignoring redemption for another reward")
		return nil, nil
	}
	ref, ok := r.resolver.FindReference(ev.Input)
	if !ok {
		l.Warn().Str(logging.FieldRequester, ev.Username).Msg("no song request found in redemption")
		r.notify(ctx, strings.ToLower(ev.Username), noReferenceRedemptionMessage())
		return nil, nil
	}
	req, _, err := r.Submit(ctx, RawSubmission{
		ID:            ev.ID,
		Reference:     ref,
		RequesterName: ev.Username,
		Channel:       ChannelReward,
		SubmittedAt:   ev.Timestamp,
	}, false)
	return req, err
}
