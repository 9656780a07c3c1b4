package app

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/config"
	"github.com/shandysiswandi/watchsync/internal/pkg/goroutine"
	"github.com/shandysiswandi/watchsync/internal/pkg/idempotency"
	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/pkg/messaging"
	"github.com/shandysiswandi/watchsync/internal/pkg/router"
	"github.com/shandysiswandi/watchsync/internal/pkg/slot"
	"github.com/shandysiswandi/watchsync/internal/pkg/uid"
	"github.com/shandysiswandi/watchsync/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID

	// resources
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	messaging messaging.Messaging
	slot      slot.Slot

	// server
	router     *router.Router
	httpServer *http.Server
	sseServer  *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initCache()
	app.initMessaging()
	app.initSlot()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
