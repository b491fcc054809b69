package hub

import (
	"encoding/json"
)

// Inbound events.
const (
	EventSubmitRequest       = "submitRequest"
	EventAuthenticate        = "authenticate"
	EventDeleteFromQueue     = "deleteFromQueue"
	EventMarkFinished        = "markFinished"
	EventSkip                = "skip"
	EventPromoteNext         = "promoteNext"
	EventRefundQueueItem     = "refundQueueItem"
	EventRefundHistoryItem   = "refundHistoryItem"
	EventBlockUser           = "blockUser"
	EventUnblockUser         = "unblockUser"
	EventAddBlacklistItem    = "addBlacklistItem"
	EventRemoveBlacklistItem = "removeBlacklistItem"
	EventSaveSetting         = "saveSetting"
	EventAdminAddRequest     = "adminAddRequest"
	EventGetAllTimeStats     = "getAllTimeStats"
	EventGetRefundedRequests = "getRefundedRequests"
	EventPing                = "ping"
)

// Outbound acknowledgements addressed to a single connection.
const (
	EventRequestSuccess         = "requestSuccess"
	EventRequestError           = "requestError"
	EventRefundSuccess          = "refundSuccess"
	EventRefundError            = "refundError"
	EventAdminAuthSuccess       = "adminAuthSuccess"
	EventAdminAuthFailed        = "adminAuthFailed"
	EventAdminAuthRequired      = "adminAuthRequired"
	EventAdminError             = "adminError"
	EventAllTimeStatsUpdate     = "allTimeStatsUpdate"
	EventRefundedRequestsUpdate = "refundedRequestsUpdate"
	EventPong                   = "pong"
	EventError                  = "error"
)

// Envelope is the frame exchanged in both directions over the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}

type submitPayload struct {
	Reference      string `json:"reference"`
	RequesterName  string `json:"requesterName"`
	RequesterLogin string `json:"requesterLogin"`
	Channel        string `json:"channel"`
}

type authenticatePayload struct {
	Identity string `json:"identity"`
}

type idPayload struct {
	ID string `json:"id"`
}

type refundPayload struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type loginPayload struct {
	Login string `json:"login"`
}

type blacklistPayload struct {
	Pattern string `json:"pattern"`
	Type    string `json:"type"`
}

type blacklistIDPayload struct {
	ID int64 `json:"id"`
}

type settingPayload struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// reasonChannelNotAllowed is sent when an anonymous connection asks for a
// donation or reward slot.
const reasonChannelNotAllowed = "channel_not_allowed"

type errorPayload struct {
	Action  string `json:"action,omitempty"`
	Reason  string `json:"reason,omitempty"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}
