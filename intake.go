package main

// this file bridges the event source into the radio

import (
	"context"
	"errors"

	"github.com/himanshub16/upnext-live/logging"
	"github.com/himanshub16/upnext-live/radio"
	"github.com/himanshub16/upnext-live/streamelements"
)

type eventSink interface {
	HandleDonation(ctx context.Context, ev radio.DonationEvent) (*radio.Request, error)
	HandleRedemption(ctx context.Context, ev radio.RedemptionEvent) (*radio.Request, error)
}

// intake implements streamelements.Handler.
type intake struct {
	sink eventSink
}

var _ streamelements.Handler = (*intake)(nil)

func (in *intake) OnTip(ctx context.Context, tip streamelements.Tip) {
	req, err := in.sink.HandleDonation(ctx, radio.DonationEvent{
		ID:        tip.ID,
		Username:  tip.Username,
		Amount:    tip.Amount,
		Currency:  tip.Currency,
		Message:   tip.Message,
		Timestamp: tip.At,
	})
	logOutcome(ctx, "donation", tip.ID, req, err)
}

func (in *intake) OnRedemption(ctx context.Context, r streamelements.Redemption) {
	req, err := in.sink.HandleRedemption(ctx, radio.RedemptionEvent{
		ID:          r.ID,
		Username:    r.Username,
		RewardTitle: r.RewardTitle,
		Input:       r.Input,
		Timestamp:   r.At,
	})
	logOutcome(ctx, "redemption", r.ID, req, err)
}

func logOutcome(ctx context.Context, kind, id string, req *radio.Request, err error) {
	l := logging.Ctx(ctx)
	switch {
	case err == nil && req == nil:
		l.Debug().Str("kind", kind).Str(logging.FieldRequestID, id).Msg("event produced no request")
	case err == nil:
		l.Debug().Str("kind", kind).Str(logging.FieldRequestID, id).Msg("event queued")
	case errors.Is(err, radio.ErrInvalidInput):
		l.Warn().Err(err).Str("kind", kind).Str(logging.FieldRequestID, id).Msg("event could not be submitted")
	default:
		if _, ok := radio.AsRejection(err); ok {
			return
		}
		l.Error().Err(err).Str("kind", kind).Str(logging.FieldRequestID, id).Msg("event handling failed")
	}
}
