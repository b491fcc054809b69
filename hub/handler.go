package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/himanshub16/upnext-live/config"
	"github.com/himanshub16/upnext-live/logging"
	"github.com/himanshub16/upnext-live/radio"
)

// TokenIssuer mints a bearer token for an authenticated moderator so the
// REST admin routes can be called with the same identity.
type TokenIssuer interface {
	Issue(identity string) (string, error)
}

// WSHandler upgrades HTTP requests and dispatches socket commands to the radio.
type WSHandler struct {
	ctx      context.Context
	hub      *Hub
	radio    *radio.Radio
	issuer   TokenIssuer
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler builds the handler. An empty origins list accepts any origin.
func NewWSHandler(ctx context.Context, h *Hub, r *radio.Radio, issuer TokenIssuer, cfg config.WebSocketConfig, origins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &WSHandler{
		ctx:    ctx,
		hub:    h,
		radio:  r,
		issuer: issuer,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(req *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := req.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[strings.TrimRight(origin, "/")]
				return ok
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := logging.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(uuid.New().String(), h.hub, conn, h.cfg)
	h.radio.Sessions().Connect(client.ID)
	h.hub.Register(client)

	l := logging.L()
	l.Info().Str(logging.FieldConnID, client.ID).Str("remote", r.RemoteAddr).Msg("observer connected")

	go client.WritePump()
	h.radio.Welcome(client.Send)
	go client.ReadPump(h.handleMessage, h.handleClose)
}

func (h *WSHandler) handleClose(c *Client) {
	h.radio.Sessions().Disconnect(c.ID)
	l := logging.L()
	l.Info().Str(logging.FieldConnID, c.ID).Msg("observer disconnected")
}

func (h *WSHandler) handleMessage(c *Client, message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.Send(EventError, errorPayload{Message: "invalid message format"})
		return
	}
	logger := logging.Ctx(h.ctx).With().Str(logging.FieldConnID, c.ID).Str("event", env.Event).Logger()
	ctx := logging.WithLogger(h.ctx, logger)

	switch env.Event {
	case EventPing:
		c.Send(EventPong, nil)

	case EventSubmitRequest:
		var p submitPayload
		if !decode(c, env, &p) {
			return
		}
		raw := radio.RawSubmission{
			Reference:      p.Reference,
			RequesterName:  p.RequesterName,
			RequesterLogin: p.RequesterLogin,
			Channel:        radio.Channel(p.Channel),
		}
		// paid channels come from the event source; only moderators may pick one here
		if raw.Channel != "" && raw.Channel != radio.ChannelDirect && !h.radio.Sessions().IsAuthenticated(c.ID) {
			l := logging.Ctx(ctx)
			l.Warn().Str(logging.FieldChannel, p.Channel).Msg("anonymous submission on a paid channel")
			c.Send(EventRequestError, errorPayload{Action: env.Event, Reason: reasonChannelNotAllowed, Message: "only direct requests can be submitted here"})
			return
		}
		req, pos, err := h.radio.Submit(ctx, raw, false)
		h.ackSubmission(c, req, pos, err)

	case EventAuthenticate:
		var p authenticatePayload
		if !decode(c, env, &p) {
			return
		}
		h.authenticate(ctx, c, p.Identity)

	case EventAdminAddRequest:
		var p submitPayload
		if !decode(c, env, &p) {
			return
		}
		raw := radio.RawSubmission{
			Reference:      p.Reference,
			RequesterName:  p.RequesterName,
			RequesterLogin: p.RequesterLogin,
			Channel:        radio.Channel(p.Channel),
		}
		req, pos, err := h.radio.SubmitAsModerator(ctx, c.ID, raw)
		if errors.Is(err, radio.ErrAuthRequired) {
			h.authRequired(c, env.Event)
			return
		}
		h.ackSubmission(c, req, pos, err)

	case EventDeleteFromQueue:
		var p idPayload
		if !decode(c, env, &p) {
			return
		}
		_, err := h.radio.DeleteFromQueue(ctx, c.ID, p.ID)
		h.ackModeration(c, env.Event, err)

	case EventMarkFinished:
		_, err := h.radio.MarkFinished(ctx, c.ID)
		h.ackModeration(c, env.Event, err)

	case EventSkip:
		_, err := h.radio.Skip(ctx, c.ID)
		h.ackModeration(c, env.Event, err)

	case EventPromoteNext:
		_, err := h.radio.PromoteNext(ctx, c.ID)
		h.ackModeration(c, env.Event, err)

	case EventRefundQueueItem, EventRefundHistoryItem:
		var p refundPayload
		if !decode(c, env, &p) {
			return
		}
		var (
			req *radio.Request
			err error
		)
		if env.Event == EventRefundQueueItem {
			req, err = h.radio.RefundQueueItem(ctx, c.ID, p.ID, p.Reason)
		} else {
			req, err = h.radio.RefundHistoryItem(ctx, c.ID, p.ID, p.Reason)
		}
		h.ackRefund(c, env.Event, p.ID, req, err)

	case EventBlockUser, EventUnblockUser:
		var p loginPayload
		if !decode(c, env, &p) {
			return
		}
		var err error
		if env.Event == EventBlockUser {
			err = h.radio.BlockUser(ctx, c.ID, p.Login)
		} else {
			err = h.radio.UnblockUser(ctx, c.ID, p.Login)
		}
		h.ackModeration(c, env.Event, err)

	case EventAddBlacklistItem:
		var p blacklistPayload
		if !decode(c, env, &p) {
			return
		}
		_, err := h.radio.AddBlacklistItem(ctx, c.ID, p.Pattern, radio.BlacklistType(p.Type))
		h.ackModeration(c, env.Event, err)

	case EventRemoveBlacklistItem:
		var p blacklistIDPayload
		if !decode(c, env, &p) {
			return
		}
		_, err := h.radio.RemoveBlacklistItem(ctx, c.ID, p.ID)
		h.ackModeration(c, env.Event, err)

	case EventSaveSetting:
		var p settingPayload
		if !decode(c, env, &p) {
			return
		}
		var value interface{}
		if len(p.Value) > 0 {
			if err := json.Unmarshal(p.Value, &value); err != nil {
				c.Send(EventAdminError, errorPayload{Action: env.Event, Message: "invalid setting value"})
				return
			}
		}
		err := h.radio.SaveSetting(ctx, c.ID, p.Key, value)
		h.ackModeration(c, env.Event, err)

	case EventGetAllTimeStats:
		stats, err := h.radio.Stats(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to compute stats")
			c.Send(EventError, errorPayload{Action: env.Event, Message: "statistics unavailable"})
			return
		}
		c.Send(EventAllTimeStatsUpdate, stats)

	case EventGetRefundedRequests:
		items, err := h.radio.RefundedRequests(ctx, c.ID)
		if err != nil {
			h.ackModeration(c, env.Event, err)
			return
		}
		c.Send(EventRefundedRequestsUpdate, items)

	default:
		c.Send(EventError, errorPayload{Action: env.Event, Message: "unknown event"})
	}
}

func decode(c *Client, env Envelope, dst interface{}) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		c.Send(EventError, errorPayload{Action: env.Event, Message: "invalid payload"})
		return false
	}
	return true
}

func (h *WSHandler) authenticate(ctx context.Context, c *Client, identity string) {
	l := logging.Ctx(ctx)
	if !h.radio.Sessions().Authenticate(c.ID, identity) {
		l.Warn().Str("identity", identity).Msg("moderator authentication failed")
		c.Send(EventAdminAuthFailed, errorPayload{Message: "not an authorized moderator"})
		return
	}

	payload := map[string]interface{}{"identity": strings.ToLower(strings.TrimSpace(identity))}
	if h.issuer != nil {
		token, err := h.issuer.Issue(identity)
		if err != nil {
			l.Error().Err(err).Msg("failed to issue moderator token")
		} else {
			payload["token"] = token
		}
	}
	l.Info().Str("identity", identity).Msg("moderator authenticated")
	c.Send(EventAdminAuthSuccess, payload)
}

func (h *WSHandler) ackSubmission(c *Client, req *radio.Request, pos int, err error) {
	if err == nil {
		c.Send(EventRequestSuccess, map[string]interface{}{
			"request":  req,
			"position": pos + 1,
		})
		return
	}
	if rej, ok := radio.AsRejection(err); ok {
		c.Send(EventRequestError, errorPayload{Reason: string(rej.Reason), Message: rej.Message})
		return
	}
	c.Send(EventRequestError, errorPayload{Message: err.Error()})
}

func (h *WSHandler) ackModeration(c *Client, action string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, radio.ErrAuthRequired):
		h.authRequired(c, action)
	default:
		c.Send(EventAdminError, errorPayload{Action: action, Message: err.Error()})
	}
}

func (h *WSHandler) ackRefund(c *Client, action, id string, req *radio.Request, err error) {
	switch {
	case err == nil:
		c.Send(EventRefundSuccess, req)
	case errors.Is(err, radio.ErrAuthRequired):
		h.authRequired(c, action)
	default:
		c.Send(EventRefundError, errorPayload{Action: action, ID: id, Message: err.Error()})
	}
}

func (h *WSHandler) authRequired(c *Client, action string) {
	c.Send(EventAdminAuthRequired, errorPayload{Action: action, Message: "moderator authentication required"})
}
