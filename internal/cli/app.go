// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/counsellor/internal/api"
	"github.com/jeranaias/counsellor/internal/counsellor"
	"github.com/jeranaias/counsellor/internal/health"
	"github.com/jeranaias/counsellor/internal/model"
	"github.com/jeranaias/counsellor/internal/reveal"
	"github.com/jeranaias/counsellor/internal/storage"
	"github.com/jeranaias/counsellor/internal/voice"
)

// =============================================================================
// APP WIRING
// =============================================================================

// app holds the collaborators built from the config for one invocation.
type app struct {
	rt      *runtime
	client  *api.Client
	db      *storage.SQLiteService
	store   *storage.Adapter
	tracker *model.StatusTracker
	prober  *health.Prober
}

// openApp opens the local store and builds the backend client.
func (rt *runtime) openApp() (*app, error) {
	cfg := rt.cfg

	db, err := storage.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}

	client := api.NewClient(&api.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Logger:  rt.log("api"),
	}, api.Chain{
		api.StaticToken(cfg.API.Token),
		api.TokenFile(cfg.API.TokenFile),
	})

	tracker := model.NewStatusTracker()
	prober := health.New(client, tracker, health.Config{
		Timeout:  cfg.API.ProbeTimeout(),
		Interval: cfg.API.ProbeInterval(),
		Logger:   rt.log("health"),
	})

	return &app{
		rt:      rt,
		client:  client,
		db:      db,
		store:   storage.NewAdapter(db, cfg.User.ID, rt.log("storage")),
		tracker: tracker,
		prober:  prober,
	}, nil
}

// newSession builds a chat session that reports to notify.
func (a *app) newSession(notify func(counsellor.Event)) (*counsellor.Session, error) {
	cfg := a.rt.cfg

	sc := counsellor.Config{
		Chat:        a.client,
		Store:       a.store,
		Tracker:     a.tracker,
		Prober:      a.prober,
		Reveal:      reveal.New(reveal.WithTick(cfg.UI.RevealTick())),
		Notify:      notify,
		SendTimeout: cfg.API.SendTimeout(),
		Logger:      a.rt.log("session"),
	}
	if cfg.Voice.Enabled {
		sc.Device = &voice.CommandDevice{Command: cfg.Voice.RecordCommand}
		sc.STT = a.client
		sc.TTS = a.client
		sc.Player = &voice.CommandPlayer{Command: cfg.Voice.PlayCommand}
	}

	a.rt.log("cli").WithFields(logrus.Fields{
		"user":  cfg.User.ID,
		"voice": cfg.Voice.Enabled,
	}).Debug("session created")
	return counsellor.New(sc)
}

// watchSignIn reports sign-in changes to notify while the chat runs. It
// returns a stop function; without a token file it does nothing.
func (a *app) watchSignIn(notify func(counsellor.Event)) func() {
	path := a.rt.cfg.API.TokenFile
	if path == "" {
		return func() {}
	}
	w, err := api.WatchTokenFile(path, api.DefaultWatchDebounce, func(signedIn bool) {
		msg := "Signed out."
		if signedIn {
			msg = "Signed in. You can chat now."
		}
		notify(counsellor.NoticeEvent{Message: msg})
	}, a.rt.log("api"))
	if err != nil {
		a.rt.log("cli").WithError(err).Warn("cannot watch token file")
		return func() {}
	}
	return func() { w.Close() }
}

// Close releases the store.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.rt.log("cli").WithError(err).Warn("close store")
	}
}
