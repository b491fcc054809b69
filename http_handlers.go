package main

// this file contains implementation of HTTP handlers - REST API

import (
	"context"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"

	"github.com/himanshub16/upnext-live/radio"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type observerCounter interface {
	ClientCount() int
}

// jwtIssuer signs moderator tokens for the admin REST routes.
type jwtIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newJWTIssuer(secret string, ttl time.Duration) *jwtIssuer {
	return &jwtIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (j *jwtIssuer) Issue(identity string) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)
	claims["identity"] = identity
	claims["exp"] = j.now().Add(j.ttl).Unix()
	return token.SignedString(j.secret)
}

type api struct {
	radio     *radio.Radio
	db        pinger
	observers observerCounter
	issuer    *jwtIssuer
}

func NewHTTPRouter(r *radio.Radio, db pinger, observers observerCounter, issuer *jwtIssuer, ws http.Handler) *echo.Echo {
	a := &api{radio: r, db: db, observers: observers, issuer: issuer}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}, latency=${latency_human}\n",
	}))
	e.Use(middleware.Recover())

	e.GET("/ws", echo.WrapHandler(ws))

	router := e.Group("/api")
	router.GET("/health", a.healthCheckHandler)
	router.GET("/queue", a.queueHandler)
	router.GET("/active", a.activeHandler)
	router.GET("/history", a.historyHandler)
	router.GET("/stats", a.statsHandler)
	router.POST("/login", a.loginHandler)

	adminGroup := router.Group("/admin")
	adminGroup.Use(middleware.JWT(issuer.secret))
	{
		adminGroup.GET("/refunds", a.refundsHandler)
	}

	return e
}

func (a *api) healthCheckHandler(c echo.Context) error {
	if err := a.db.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":  "unavailable",
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "ok",
		"observers": a.observers.ClientCount(),
	})
}

func (a *api) queueHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, a.radio.Pending())
}

func (a *api) activeHandler(c echo.Context) error {
	active := a.radio.Active()
	if active == nil {
		return c.JSON(http.StatusOK, echo.Map{"state": "idle", "request": nil})
	}
	return c.JSON(http.StatusOK, echo.Map{"state": "playing", "request": active})
}

func (a *api) historyHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, a.radio.History())
}

func (a *api) statsHandler(c echo.Context) error {
	stats, err := a.radio.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "statistics unavailable",
		})
	}
	return c.JSON(http.StatusOK, stats)
}

func (a *api) loginHandler(c echo.Context) error {
	form := struct {
		Identity string `json:"identity" form:"identity"`
	}{}
	if err := c.Bind(&form); err != nil || form.Identity == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "Missing identity",
		})
	}
	if !a.radio.Sessions().IsModerator(form.Identity) {
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"message": "not an authorized moderator",
		})
	}

	t, err := a.issuer.Issue(form.Identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token": t,
	})
}

func (a *api) refundsHandler(c echo.Context) error {
	if !a.radio.Sessions().IsModerator(getIdentityFromContext(c)) {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "not an authorized moderator"})
	}
	items, err := a.radio.Refunded(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, items)
}

func getIdentityFromContext(c echo.Context) string {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	identity, _ := claims["identity"].(string)
	return identity
}
