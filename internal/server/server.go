package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/zdnscloud/zdhcp-sub001/internal/config"
	"github.com/zdnscloud/zdhcp-sub001/internal/control"
	"github.com/zdnscloud/zdhcp-sub001/internal/hooks"
	"github.com/zdnscloud/zdhcp-sub001/internal/iface"
	"github.com/zdnscloud/zdhcp-sub001/internal/pipeline"
	"github.com/zdnscloud/zdhcp-sub001/internal/ping"
	"github.com/zdnscloud/zdhcp-sub001/internal/queue"
	"github.com/zdnscloud/zdhcp-sub001/internal/rpcclient"
	"github.com/zdnscloud/zdhcp-sub001/internal/stats"
	"github.com/zdnscloud/zdhcp-sub001/internal/subnet"
)

const (
	defaultIngressSize = 4096
	defaultEgressSize  = 4096
	defaultWorkers     = 8
	defaultConnections = 4
)

// Server is the slave's top-level process: it owns every subsystem
// and drives their Start/Shutdown lifecycle, per spec.md §5.
type Server struct {
	conf   *config.Config
	logger *slog.Logger

	subnets  *subnet.Manager
	rpc      *rpcclient.Client
	ping     *ping.Engine
	hooks    *hooks.Registry
	counters *stats.Counters
	reporter *stats.Reporter
	leaseLog *stats.FileWriter
	pool     *pipeline.Pool
	control  *control.Server

	cancel context.CancelFunc
}

// New builds every subsystem from conf. Building them starts the ping
// engine and RPC client goroutines, opens the interface filters, the
// control listener and the lease file; the worker pool, the reporter
// and the control server's accept loop wait for Start.
func New(conf *config.Config, logger *slog.Logger) (srv *Server, err error) {
	classes, err := buildClasses(conf.ClientClasses)
	if err != nil {
		return nil, err
	}

	subnets, err := buildSubnets(conf.Subnet4)
	if err != nil {
		return nil, err
	}

	mgr, err := subnet.NewManager(subnets)
	if err != nil {
		return nil, fmt.Errorf("building subnet manager: %w", err)
	}

	counters := &stats.Counters{}

	var pingEngine *ping.Engine
	if conf.Ping.Enable {
		pingEngine, err = ping.New(ping.Config{
			Timeout:   conf.PingTimeout(),
			QueueSize: conf.Ping.QueueSize,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("starting ping engine: %w", err)
		}
	}

	var leaseLog *stats.FileWriter
	if conf.LeaseDatabase != "" {
		leaseLog, err = stats.NewFileWriter(conf.LeaseDatabase)
		if err != nil {
			return nil, fmt.Errorf("opening lease database: %w", err)
		}
	}

	hookRegistry := hooks.NewRegistry()
	for i, lib := range conf.HooksLibraries {
		if err = hookRegistry.Load(lib.Library, i, lib.Parameters); err != nil {
			return nil, fmt.Errorf("loading hook library %q: %w", lib.Library, err)
		}
	}

	rpc := rpcclient.New(rpcclient.Config{
		Addr:        fmt.Sprintf("%s:%d", conf.RPCServer.Host, conf.RPCServer.Port),
		Connections: connectionsOrDefault(conf.RPCServer.Connections),
		MaxRetries:  3,
		DialTimeout: 5 * time.Second,
		Backoff:     time.Second,
		Logger:      logger,
	})

	srv = &Server{
		conf:     conf,
		logger:   logger,
		subnets:  mgr,
		rpc:      rpc,
		ping:     pingEngine,
		hooks:    hookRegistry,
		counters: counters,
		reporter: stats.NewReporter(counters),
		leaseLog: leaseLog,
	}

	workers := conf.WorkerCount
	if workers <= 0 {
		workers = defaultWorkers
	}

	egress := queue.New[*pipeline.Outbound](defaultEgressSize)

	filters, err := openFilters(conf.InterfacesConfig)
	if err != nil {
		return nil, err
	}

	srv.pool = pipeline.NewPool(pipeline.Deps{
		Classes:         classes,
		Subnets:         mgr,
		RPC:             rpc,
		Ping:            pingEngine,
		Hooks:           hookRegistry,
		Counters:        counters,
		LeaseLog:        leaseLog,
		Egress:          egress,
		Logger:          logger,
		MaxAllocRetries: 3,
	}, filters, defaultIngressSize, workers)

	ctl, err := control.NewServer(conf.ControlAddr, logger, srv.stopRequested)
	if err != nil {
		return nil, fmt.Errorf("starting control server: %w", err)
	}

	srv.control = ctl
	srv.registerControlHandlers()

	return srv, nil
}

// Start launches every goroutine: the worker pool, the statistics
// reporter, and the control server. Listeners are already bound by
// New, so Start returns nil; Serve errors are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.pool.Start(ctx)

	go s.reporter.Run(ctx)

	go func() {
		if err := s.control.Serve(ctx); err != nil {
			s.logger.Error("control server stopped", "error", err)
		}
	}()

	return nil
}

// Shutdown stops every subsystem in dependency order: intake first,
// then the services the pipeline depends on.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}

	s.pool.Stop()
	s.rpc.Close()

	if s.ping != nil {
		s.ping.Close()
	}

	s.hooks.Unload()

	if s.leaseLog != nil {
		_ = s.leaseLog.Close()
	}
}

// stopRequested is the control server's "stop" callback.
func (s *Server) stopRequested() {
	s.logger.Info("stop requested over control channel")
	s.Shutdown()
}

// registerControlHandlers wires spec.md §6's stop/reconfig/statis_lps
// commands to this server's subsystems.
func (s *Server) registerControlHandlers() {
	s.control.Register("statis_lps", func(context.Context, json.RawMessage) (string, error) {
		return s.reporter.Format(), nil
	})

	s.control.Register("reconfig", func(_ context.Context, args json.RawMessage) (string, error) {
		var c config.Config
		if err := json.Unmarshal(args, &c); err != nil {
			return "", fmt.Errorf("parsing reconfig args: %w", err)
		}

		if err := c.Validate(); err != nil {
			return "", fmt.Errorf("validating reconfig args: %w", err)
		}

		subnets, err := buildSubnets(c.Subnet4)
		if err != nil {
			return "", err
		}

		if err := s.subnets.Reconfigure(subnets); err != nil {
			return "", err
		}

		return "reconfigured", nil
	})

	s.control.Register("stop", func(context.Context, json.RawMessage) (string, error) {
		return "stopping", nil
	})
}

func connectionsOrDefault(n int) int {
	if n <= 0 {
		return defaultConnections
	}

	return n
}

// openFilters opens one socket filter per configured interface name,
// or every interface when the configuration names "*", per spec.md
// §6.
func openFilters(ic config.InterfacesConfig) ([]iface.Filter, error) {
	all, err := iface.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("enumerating interfaces: %w", err)
	}

	wildcard := len(ic.Interfaces) == 1 && ic.Interfaces[0] == "*"

	var filters []iface.Filter

	for _, i := range all {
		if !wildcard && !contains(ic.Interfaces, i.Name) {
			continue
		}

		f, oerr := iface.Open(i, iface.FilterInet)
		if oerr != nil {
			return nil, fmt.Errorf("opening filter on %s: %w", i.Name, oerr)
		}

		filters = append(filters, f)
	}

	return filters, nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}

	return false
}
