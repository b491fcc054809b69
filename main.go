package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/himanshub16/upnext-live/config"
	"github.com/himanshub16/upnext-live/hub"
	"github.com/himanshub16/upnext-live/logging"
	"github.com/himanshub16/upnext-live/notify"
	"github.com/himanshub16/upnext-live/radio"
	"github.com/himanshub16/upnext-live/repository"
	"github.com/himanshub16/upnext-live/streamelements"
	"github.com/himanshub16/upnext-live/twitch"
	"github.com/himanshub16/upnext-live/youtube"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log)
	l := logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(ctx, cfg.Database.URL)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to open database")
	}
	defer repo.Close()

	var (
		tw       *twitch.Client
		identity radio.IdentityLookup
	)
	if cfg.Twitch.Enabled() {
		if tw, err = twitch.New(cfg.Twitch); err != nil {
			l.Fatal().Err(err).Msg("invalid twitch config")
		}
		identity = tw
	} else {
		l.Warn().Msg("twitch credentials missing, requester lookup disabled")
	}

	notifier, closeNotifier := newNotifier(ctx, cfg, tw)
	defer closeNotifier()

	h := hub.New()
	r := radio.New(radio.Options{
		Repo:        repo,
		Resolver:    youtube.New(cfg.YouTube),
		Notifier:    notifier,
		Identity:    identity,
		Broadcaster: h,
		Sessions:    radio.NewSessions(cfg.Auth.Moderators),
		Limits: radio.Limits{
			MaxDonationDuration: cfg.Limits.MaxDonationDuration,
			MaxRewardDuration:   cfg.Limits.MaxRewardDuration,
			HistoryWindow:       cfg.Limits.HistoryWindow,
		},
		RewardTitle: cfg.StreamElements.RewardTitle,
	})
	if err := r.Load(ctx); err != nil {
		l.Fatal().Err(err).Msg("failed to restore state")
	}
	go h.Run(ctx)

	if cfg.StreamElements.Enabled() {
		se, err := streamelements.New(cfg.StreamElements, &intake{sink: r})
		if err != nil {
			l.Fatal().Err(err).Msg("invalid streamelements config")
		}
		go func() {
			if err := se.Run(ctx); err != nil {
				l.Error().Err(err).Msg("streamelements client stopped")
			}
		}()
	} else {
		l.Info().Msg("streamelements not configured, only direct submissions accepted")
	}

	if err := checkJWTSecret(cfg.Auth); err != nil {
		l.Fatal().Err(err).Msg("refusing to start")
	}
	issuer := newJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	ws := hub.NewWSHandler(ctx, h, r, issuer, cfg.WebSocket, cfg.Server.AllowedOrigins)
	echoRouter := NewHTTPRouter(r, repo, h, issuer, ws)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		l.Info().Str("addr", addr).Int("moderators", len(cfg.Auth.Moderators)).Msg("server listening")
		if err := echoRouter.Start(addr); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	l.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := echoRouter.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("http shutdown")
	}
}

// checkJWTSecret fails when moderators are configured but admin tokens are
// signed with the default key. Without moderators the admin routes reject
// every identity, so the default only warns.
func checkJWTSecret(cfg config.AuthConfig) error {
	if !cfg.UsesDefaultSecret() {
		return nil
	}
	if len(cfg.Moderators) > 0 {
		return errors.New("JWT_SECRET must be set when ADMIN_USERNAMES is configured")
	}
	l := logging.L()
	l.Warn().Msg("JWT_SECRET not set, admin tokens use the default key")
	return nil
}

// newNotifier picks the chat transport. The returned func releases it.
func newNotifier(ctx context.Context, cfg *config.Config, tw *twitch.Client) (radio.Notifier, func()) {
	l := logging.L()
	switch cfg.Notifier.Kind {
	case "redis":
		n, err := notify.NewRedisNotifier(ctx, cfg.Redis)
		if err != nil {
			l.Error().Err(err).Msg("redis notifier unavailable, falling back to log")
			return notify.LogNotifier{}, func() {}
		}
		return n, func() { n.Close() }
	case "twitch":
		if tw != nil {
			return tw, func() {}
		}
		l.Warn().Msg("twitch notifier selected without credentials, falling back to log")
	}
	return notify.LogNotifier{}, func() {}
}
