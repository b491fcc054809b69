package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/himanshub16/upnext-live/logging"
	"github.com/himanshub16/upnext-live/radio"
)

type blacklistRow struct {
	ID      int64  `db:"id"`
	Pattern string `db:"pattern"`
	Type    string `db:"type"`
	AddedAt int64  `db:"added_at"`
}

type blockedRow struct {
	ID      int64  `db:"id"`
	Login   string `db:"login"`
	AddedAt int64  `db:"added_at"`
}

// LoadBlacklist returns patterns newest first.
func (r *SQLRepository) LoadBlacklist(ctx context.Context) ([]radio.BlacklistItem, error) {
	rows := []blacklistRow{}
	if err := r.db.SelectContext(ctx, &rows, `select id, pattern, type, added_at from blacklist order by id desc`); err != nil {
		return nil, fmt.Errorf("select blacklist: %w", err)
	}
	items := make([]radio.BlacklistItem, len(rows))
	for i, row := range rows {
		items[i] = radio.BlacklistItem{
			ID:      row.ID,
			Pattern: row.Pattern,
			Type:    radio.BlacklistType(row.Type),
			AddedAt: fromMillis(row.AddedAt),
		}
	}
	return items, nil
}

func (r *SQLRepository) AddBlacklistItem(ctx context.Context, pattern string, typ radio.BlacklistType, at time.Time) (radio.BlacklistItem, error) {
	query := r.db.Rebind(`
	  insert into blacklist (pattern, type, added_at) values (?, ?, ?)
	  on conflict (pattern) do update set type = excluded.type
	  returning id`)
	var id int64
	if err := r.db.QueryRowxContext(ctx, query, pattern, string(typ), millis(at)).Scan(&id); err != nil {
		return radio.BlacklistItem{}, fmt.Errorf("insert blacklist item: %w", err)
	}
	return radio.BlacklistItem{ID: id, Pattern: pattern, Type: typ, AddedAt: at}, nil
}

func (r *SQLRepository) RemoveBlacklistItem(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`delete from blacklist where id = ?`), id); err != nil {
		return fmt.Errorf("delete blacklist item %d: %w", id, err)
	}
	return nil
}

// LoadBlockedUsers returns blocked logins newest first.
func (r *SQLRepository) LoadBlockedUsers(ctx context.Context) ([]radio.BlockedUser, error) {
	rows := []blockedRow{}
	if err := r.db.SelectContext(ctx, &rows, `select id, login, added_at from blocked_users order by id desc`); err != nil {
		return nil, fmt.Errorf("select blocked users: %w", err)
	}
	users := make([]radio.BlockedUser, len(rows))
	for i, row := range rows {
		users[i] = radio.BlockedUser{ID: row.ID, Login: row.Login, AddedAt: fromMillis(row.AddedAt)}
	}
	return users, nil
}

// AddBlockedUser stores login lower-cased; blocking an already blocked login
// returns the existing row.
func (r *SQLRepository) AddBlockedUser(ctx context.Context, login string, at time.Time) (radio.BlockedUser, error) {
	login = strings.ToLower(login)
	query := r.db.Rebind(`
	  insert into blocked_users (login, added_at) values (?, ?)
	  on conflict (login) do update set login = excluded.login
	  returning id`)
	var id int64
	if err := r.db.QueryRowxContext(ctx, query, login, millis(at)).Scan(&id); err != nil {
		return radio.BlockedUser{}, fmt.Errorf("insert blocked user: %w", err)
	}
	return radio.BlockedUser{ID: id, Login: login, AddedAt: at}, nil
}

func (r *SQLRepository) RemoveBlockedUser(ctx context.Context, login string) error {
	query := r.db.Rebind(`delete from blocked_users where login = ?`)
	if _, err := r.db.ExecContext(ctx, query, strings.ToLower(login)); err != nil {
		return fmt.Errorf("delete blocked user %s: %w", login, err)
	}
	return nil
}

// LoadSettings decodes every stored value. Values that are not valid JSON are
// skipped with a warning.
func (r *SQLRepository) LoadSettings(ctx context.Context) (radio.Settings, error) {
	rows := []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `select key, value from settings`); err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	settings := make(radio.Settings, len(rows))
	for _, row := range rows {
		var v interface{}
		if err := json.Unmarshal([]byte(row.Value), &v); err != nil {
			l := logging.Ctx(ctx)
			l.Warn().Err(err).Str("key", row.Key).Msg("skipping undecodable setting")
			continue
		}
		settings[row.Key] = v
	}
	return settings, nil
}

func (r *SQLRepository) SaveSetting(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	query := r.db.Rebind(`
	  insert into settings (key, value) values (?, ?)
	  on conflict (key) do update set value = excluded.value`)
	if _, err := r.db.ExecContext(ctx, query, key, string(raw)); err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}
