package repository

import (
	"database/sql"
	"time"

	"github.com/himanshub16/upnext-live/radio"
)

const requestColumns = `request_id, reference, video_id, title, author, duration_seconds, thumbnail_url,
	requester, requester_login, requester_avatar, channel, donation_amount, donation_currency,
	submitted_at, added_at, refunded, refund_reason, refunded_at`

const requestBinds = `:request_id, :reference, :video_id, :title, :author, :duration_seconds, :thumbnail_url,
	:requester, :requester_login, :requester_avatar, :channel, :donation_amount, :donation_currency,
	:submitted_at, :added_at, :refunded, :refund_reason, :refunded_at`

// requestRow is the union of the queue, history and active table columns.
type requestRow struct {
	ID               int64           `db:"id"`
	Slot             int64           `db:"slot"`
	RequestID        string          `db:"request_id"`
	Reference        string          `db:"reference"`
	VideoID          string          `db:"video_id"`
	Title            string          `db:"title"`
	Author           string          `db:"author"`
	DurationSeconds  int64           `db:"duration_seconds"`
	ThumbnailURL     string          `db:"thumbnail_url"`
	Requester        string          `db:"requester"`
	RequesterLogin   string          `db:"requester_login"`
	RequesterAvatar  string          `db:"requester_avatar"`
	Channel          string          `db:"channel"`
	DonationAmount   sql.NullFloat64 `db:"donation_amount"`
	DonationCurrency sql.NullString  `db:"donation_currency"`
	SubmittedAt      int64           `db:"submitted_at"`
	AddedAt          int64           `db:"added_at"`
	Refunded         bool            `db:"refunded"`
	RefundReason     sql.NullString  `db:"refund_reason"`
	RefundedAt       sql.NullInt64   `db:"refunded_at"`
	Status           sql.NullString  `db:"status"`
	StartedAt        sql.NullInt64   `db:"started_at"`
	FinishedAt       sql.NullInt64   `db:"finished_at"`
}

func toRow(req radio.Request) requestRow {
	row := requestRow{
		Slot:            1,
		RequestID:       req.ID,
		Reference:       req.Reference,
		VideoID:         req.VideoID,
		Title:           req.Title,
		Author:          req.Author,
		DurationSeconds: req.DurationSeconds,
		ThumbnailURL:    req.ThumbnailURL,
		Requester:       req.Requester,
		RequesterLogin:  req.RequesterLogin,
		RequesterAvatar: req.RequesterAvatar,
		Channel:         string(req.Channel),
		SubmittedAt:     millis(req.SubmittedAt),
		AddedAt:         millis(req.AddedAt),
		Refunded:        req.Refunded,
		RefundedAt:      nullMillis(req.RefundedAt),
		StartedAt:       nullMillis(req.StartedAt),
		FinishedAt:      nullMillis(req.FinishedAt),
	}
	if req.Donation != nil {
		row.DonationAmount = sql.NullFloat64{Float64: req.Donation.Amount, Valid: true}
		row.DonationCurrency = sql.NullString{String: req.Donation.Currency, Valid: true}
	}
	if req.RefundReason != "" {
		row.RefundReason = sql.NullString{String: req.RefundReason, Valid: true}
	}
	if req.Status != "" {
		row.Status = sql.NullString{String: string(req.Status), Valid: true}
	}
	return row
}

func (row requestRow) toRequest() radio.Request {
	req := radio.Request{
		ID:              row.RequestID,
		Reference:       row.Reference,
		VideoID:         row.VideoID,
		Title:           row.Title,
		Author:          row.Author,
		DurationSeconds: row.DurationSeconds,
		ThumbnailURL:    row.ThumbnailURL,
		Requester:       row.Requester,
		RequesterLogin:  row.RequesterLogin,
		RequesterAvatar: row.RequesterAvatar,
		Channel:         radio.Channel(row.Channel),
		SubmittedAt:     fromMillis(row.SubmittedAt),
		AddedAt:         fromMillis(row.AddedAt),
		Refunded:        row.Refunded,
		RefundReason:    row.RefundReason.String,
		RefundedAt:      fromNullMillis(row.RefundedAt),
		Status:          radio.Status(row.Status.String),
		StartedAt:       fromNullMillis(row.StartedAt),
		FinishedAt:      fromNullMillis(row.FinishedAt),
	}
	if row.DonationAmount.Valid {
		req.Donation = &radio.DonationInfo{
			Amount:   row.DonationAmount.Float64,
			Currency: row.DonationCurrency.String,
		}
	}
	return req
}

func toRequests(rows []requestRow) []radio.Request {
	out := make([]radio.Request, len(rows))
	for i := range rows {
		out[i] = rows[i].toRequest()
	}
	return out
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
