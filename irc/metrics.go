package irc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry is the Prometheus registry used by this package
	Registry = prometheus.NewRegistry()

	// eventsDispatched counts event fan-outs by hook name
	eventsDispatched = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircd_events_dispatched_total",
			Help: "Total number of module event dispatches by hook",
		},
		[]string{"hook"},
	)

	// commandsRun counts module command invocations by name and outcome
	commandsRun = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircd_module_commands_total",
			Help: "Total number of module command invocations by command and result",
		},
		[]string{"command", "result"},
	)

	// modulesLoaded counts successful module loads
	modulesLoaded = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ircd_modules_loaded_total",
			Help: "Total number of modules loaded",
		},
	)

	// modulesUnloaded counts module unloads
	modulesUnloaded = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ircd_modules_unloaded_total",
			Help: "Total number of modules unloaded",
		},
	)

	// modeClaimCollisions counts rejected extended-mode claims
	modeClaimCollisions = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ircd_mode_claim_collisions_total",
			Help: "Total number of extended mode claims rejected",
		},
	)
)
