package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/himanshub16/upnext-live/radio"
)

const historySelect = `select id, ` + requestColumns + `, status, started_at, finished_at from history_items`

// LoadQueue returns unrefunded queue rows in insertion order.
func (r *SQLRepository) LoadQueue(ctx context.Context) ([]radio.Request, error) {
	rows := []requestRow{}
	query := r.db.Rebind(`select id, ` + requestColumns + ` from queue_items where refunded = ? order by id asc`)
	if err := r.db.SelectContext(ctx, &rows, query, false); err != nil {
		return nil, fmt.Errorf("select queue: %w", err)
	}
	return toRequests(rows), nil
}

func (r *SQLRepository) LoadActive(ctx context.Context) (*radio.Request, error) {
	var row requestRow
	err := r.db.GetContext(ctx, &row, `select slot, `+requestColumns+`, started_at from active_item where slot = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select active: %w", err)
	}
	req := row.toRequest()
	return &req, nil
}

// LoadHistory returns the most recent limit history rows, newest first.
func (r *SQLRepository) LoadHistory(ctx context.Context, limit int) ([]radio.Request, error) {
	rows := []requestRow{}
	query := r.db.Rebind(historySelect + ` order by finished_at desc, id desc limit ?`)
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	return toRequests(rows), nil
}

func (r *SQLRepository) LoadRefundedIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	query := r.db.Rebind(`
	  select request_id from queue_items where refunded = ?
	  union
	  select request_id from history_items where refunded = ?`)
	if err := r.db.SelectContext(ctx, &ids, query, true, true); err != nil {
		return nil, fmt.Errorf("select refunded ids: %w", err)
	}
	return ids, nil
}

func (r *SQLRepository) InsertQueueItem(ctx context.Context, req radio.Request) error {
	query := `insert into queue_items (` + requestColumns + `) values (` + requestBinds + `)`
	if _, err := r.db.NamedExecContext(ctx, query, toRow(req)); err != nil {
		return fmt.Errorf("insert queue item %s: %w", req.ID, err)
	}
	return nil
}

// DeleteQueueItem removes an unrefunded queue row. Refunded rows are kept for audit.
func (r *SQLRepository) DeleteQueueItem(ctx context.Context, id string) error {
	query := r.db.Rebind(`delete from queue_items where request_id = ? and refunded = ?`)
	if _, err := r.db.ExecContext(ctx, query, id, false); err != nil {
		return fmt.Errorf("delete queue item %s: %w", id, err)
	}
	return nil
}

func (r *SQLRepository) RefundQueueItem(ctx context.Context, id, reason string, at time.Time) error {
	query := r.db.Rebind(`
	  update queue_items
	  set refunded = ?, refund_reason = ?, refunded_at = ?
	  where request_id = ? and refunded = ?`)
	return r.execOne(ctx, query, true, reason, millis(at), id, false)
}

func (r *SQLRepository) RefundHistoryItem(ctx context.Context, id, reason string, at time.Time) error {
	query := r.db.Rebind(`
	  update history_items
	  set refunded = ?, refund_reason = ?, refunded_at = ?
	  where request_id = ? and refunded = ?`)
	return r.execOne(ctx, query, true, reason, millis(at), id, false)
}

// execOne runs an update that must touch at least one row.
func (r *SQLRepository) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return radio.ErrNotFound
	}
	return nil
}

// Advance archives finished and installs next as the active row in one transaction.
func (r *SQLRepository) Advance(ctx context.Context, finished, next *radio.Request) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if finished != nil {
		if err := insertHistory(ctx, tx, *finished); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `delete from active_item where slot = 1`); err != nil {
			return fmt.Errorf("clear active: %w", err)
		}
	}

	if next != nil {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`delete from queue_items where request_id = ?`), next.ID); err != nil {
			return fmt.Errorf("dequeue %s: %w", next.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `delete from active_item where slot = 1`); err != nil {
			return fmt.Errorf("clear active: %w", err)
		}
		query := `insert into active_item (slot, ` + requestColumns + `, started_at)
		  values (:slot, ` + requestBinds + `, :started_at)`
		if _, err := tx.NamedExecContext(ctx, query, toRow(*next)); err != nil {
			return fmt.Errorf("set active %s: %w", next.ID, err)
		}
	}

	return tx.Commit()
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, req radio.Request) error {
	query := `insert into history_items (` + requestColumns + `, status, started_at, finished_at)
	  values (` + requestBinds + `, :status, :started_at, :finished_at)`
	if _, err := tx.NamedExecContext(ctx, query, toRow(req)); err != nil {
		return fmt.Errorf("archive %s: %w", req.ID, err)
	}
	return nil
}

func (r *SQLRepository) GetHistoryItem(ctx context.Context, id string) (*radio.Request, error) {
	var row requestRow
	query := r.db.Rebind(historySelect + ` where request_id = ? order by id desc limit 1`)
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, radio.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select history item %s: %w", id, err)
	}
	req := row.toRequest()
	return &req, nil
}

// RefundedRequests lists refunded queue and history rows, latest refund first.
func (r *SQLRepository) RefundedRequests(ctx context.Context) ([]radio.Request, error) {
	queued := []requestRow{}
	query := r.db.Rebind(`select id, ` + requestColumns + ` from queue_items where refunded = ?`)
	if err := r.db.SelectContext(ctx, &queued, query, true); err != nil {
		return nil, fmt.Errorf("select refunded queue items: %w", err)
	}
	archived := []requestRow{}
	query = r.db.Rebind(historySelect + ` where refunded = ?`)
	if err := r.db.SelectContext(ctx, &archived, query, true); err != nil {
		return nil, fmt.Errorf("select refunded history items: %w", err)
	}

	out := append(toRequests(archived), toRequests(queued)...)
	sort.SliceStable(out, func(i, j int) bool {
		return refundTime(out[i]).After(refundTime(out[j]))
	})
	return out, nil
}

func refundTime(req radio.Request) time.Time {
	if req.RefundedAt == nil {
		return time.Time{}
	}
	return *req.RefundedAt
}
