// Package wire provides dependency injection for the ocswarm application.
// It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"sync"

	"github.com/example/ocswarm/internal/adapters/agentexec"
	"github.com/example/ocswarm/internal/adapters/git"
	"github.com/example/ocswarm/internal/adapters/httpapi"
	"github.com/example/ocswarm/internal/adapters/sqlite"
	"github.com/example/ocswarm/internal/app"
	"github.com/example/ocswarm/internal/db"
	"github.com/example/ocswarm/internal/ports/primary"
	"github.com/example/ocswarm/internal/ports/secondary"
	"github.com/example/ocswarm/internal/tmux"
)

// Options override the wiring defaults. Set before the first service
// accessor runs; later changes are ignored.
var Options = struct {
	// DBPath overrides the default ledger location.
	DBPath string

	// AgentCommand and AgentArgs name the agent executable for the
	// subprocess backend.
	AgentCommand string
	AgentArgs    []string
}{
	AgentCommand: "ocswarm-agent",
}

var (
	runService primary.RunService
	once       sync.Once
)

// RunService returns the singleton RunService instance.
func RunService() primary.RunService {
	once.Do(initServices)
	return runService
}

// Handler returns a new HTTP handler over the singleton run service.
func Handler() *httpapi.Handler {
	return httpapi.NewHandler(RunService())
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	path := Options.DBPath
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			log.Fatalf("failed to resolve database path: %v", err)
		}
	}
	database, err := db.Open(path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	runs := sqlite.NewRunRepository(database)
	tasks := sqlite.NewTaskRepository(database)
	results := sqlite.NewResultRepository(database)
	events := sqlite.NewEventRepository(database)
	counters := sqlite.NewCounterReader(database)

	backend := agentexec.New(Options.AgentCommand, Options.AgentArgs...)
	workspace := git.NewWorkspace()

	// A missing tmux only matters for runs that configure a preview.
	var previewHost secondary.PreviewHost
	if host, err := tmux.NewGotmuxAdapter(); err == nil {
		previewHost = host
	} else {
		log.Printf("WARN: tmux unavailable, previews disabled: %v", err)
	}

	engine := app.NewEngine(runs, tasks, results, events, backend, workspace, previewHost)
	runService = app.NewRunService(runs, tasks, results, events, counters, engine)
}
