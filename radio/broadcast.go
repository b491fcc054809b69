package radio

// Outbound events published to every observer.
const (
	EventQueueUpdate        = "queueUpdate"
	EventActiveUpdate       = "activeSongUpdate"
	EventHistoryUpdate      = "historyUpdate"
	EventBlacklistUpdate    = "blacklistUpdate"
	EventBlockedUsersUpdate = "blockedUsersUpdate"
	EventSettingsUpdate     = "settingsUpdate"
	EventNewRequest         = "newRequest"
)

type change uint8

const (
	changedPending change = 1 << iota
	changedActive
	changedHistory
	changedBlacklist
	changedBlocked
	changedSettings
)

// publish sends the full current value of every changed collection.
// Callers hold r.mu so observers see mutations in the order they happened.
func (r *Radio) publish(c change) {
	if c&changedPending != 0 {
		r.broadcaster.Broadcast(EventQueueUpdate, r.state.pendingSnapshot())
	}
	if c&changedActive != 0 {
		r.broadcaster.Broadcast(EventActiveUpdate, r.state.activeSnapshot())
	}
	if c&changedHistory != 0 {
		r.broadcaster.Broadcast(EventHistoryUpdate, r.state.historySnapshot())
	}
	if c&changedBlacklist != 0 {
		r.broadcaster.Broadcast(EventBlacklistUpdate, append([]BlacklistItem{}, r.blacklist...))
	}
	if c&changedBlocked != 0 {
		r.broadcaster.Broadcast(EventBlockedUsersUpdate, append([]BlockedUser{}, r.blocked...))
	}
	if c&changedSettings != 0 {
		r.broadcaster.Broadcast(EventSettingsUpdate, copySettings(r.settings))
	}
}

// Welcome sends the full state to a single new observer through send. send
// runs with the state lock held, so it is ordered with every publish; it
// must not call back into Radio.
func (r *Radio) Welcome(send func(event string, payload interface{})) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshotLocked()

	send(EventQueueUpdate, snap.Pending)
	send(EventActiveUpdate, snap.Active)
	send(EventHistoryUpdate, snap.History)
	send(EventBlacklistUpdate, snap.Blacklist)
	send(EventBlockedUsersUpdate, snap.BlockedUsers)
	send(EventSettingsUpdate, snap.Settings)
}
