package repository

import "fmt"

// requestColumnsDDL is shared by the queue, history and active tables.
// Timestamps are unix milliseconds.
const requestColumnsDDL = `
	request_id text not null,
	reference text not null,
	video_id text not null default '',
	title text not null default '',
	author text not null default '',
	duration_seconds bigint not null default 0,
	thumbnail_url text not null default '',
	requester text not null,
	requester_login text not null default '',
	requester_avatar text not null default '',
	channel text not null,
	donation_amount double precision,
	donation_currency text,
	submitted_at bigint not null,
	added_at bigint not null,
	refunded boolean not null default false,
	refund_reason text,
	refunded_at bigint`

func schema(d dialect) []string {
	return []string{
		fmt.Sprintf(`
		  create table if not exists queue_items (
			id %s,%s,
			constraint queue_items_request_id unique (request_id)
		  );`, d.idColumn, requestColumnsDDL),
		fmt.Sprintf(`
		  create table if not exists history_items (
			id %s,%s,
			status text not null,
			started_at bigint,
			finished_at bigint not null
		  );`, d.idColumn, requestColumnsDDL),
		fmt.Sprintf(`
		  create table if not exists active_item (
			slot integer primary key,%s,
			started_at bigint
		  );`, requestColumnsDDL),
		fmt.Sprintf(`
		  create table if not exists blacklist (
			id %s,
			pattern text not null unique,
			type text not null,
			added_at bigint not null
		  );`, d.idColumn),
		fmt.Sprintf(`
		  create table if not exists blocked_users (
			id %s,
			login text not null unique,
			added_at bigint not null
		  );`, d.idColumn),
		`
		  create table if not exists settings (
			key text primary key,
			value text not null
		  );`,
		`create index if not exists history_items_finished_at on history_items (finished_at);`,
		`create index if not exists history_items_request_id on history_items (request_id);`,
	}
}
