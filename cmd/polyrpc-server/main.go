// Command polyrpc-server runs one or more polyrpc listeners (xmlrpc,
// binrpc, jsonrpc-over-tcp) sharing a single service registry, with
// optional etcd-backed service discovery and a rate-limiting
// middleware layer — spec.md §2's server process, flags parsed via
// github.com/alexflint/go-arg the way the example pack's own CLI
// tools (toolchain/cmd/vdl, toolchain/cmd/urpc) parse theirs.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/polyrpc/polyrpc/config"
	"github.com/polyrpc/polyrpc/internal/logging"
	"github.com/polyrpc/polyrpc/middleware"
	"github.com/polyrpc/polyrpc/registry"
	"github.com/polyrpc/polyrpc/rpc"
	"github.com/polyrpc/polyrpc/rpcserver"
)

var log = logging.Get("polyrpc-server")

type serverArgs struct {
	Config string `arg:"--config,required" help:"path to a server config.yaml"`
}

func main() {
	var args serverArgs
	arg.MustParse(&args)

	cfg, err := config.LoadServerConfig(args.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "polyrpc-server:", err)
		os.Exit(1)
	}
	applyLogLevel(cfg.LogLevel)

	reg, err := buildRegistry(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "polyrpc-server:", err)
		os.Exit(1)
	}

	if len(cfg.Listeners) == 0 {
		fmt.Fprintln(os.Stderr, "polyrpc-server: config has no listeners")
		os.Exit(1)
	}

	servers := make([]*rpcserver.Server, 0, len(cfg.Listeners))
	for _, l := range cfg.Listeners {
		proto, ok := rpc.ByName(l.Protocol)
		if !ok {
			fmt.Fprintf(os.Stderr, "polyrpc-server: unknown protocol %q\n", l.Protocol)
			os.Exit(1)
		}

		svr := rpcserver.NewServer(rpcserver.Config{
			Network:      "tcp",
			Address:      l.Address,
			Protocol:     proto,
			MinThreads:   cfg.MinThreads,
			MaxThreads:   cfg.MaxThreads,
			IdleTimeout:  cfg.IdleTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			KeepAlive:    cfg.KeepAlive,
		})
		if cfg.RateLimit != nil {
			svr.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RatePerSecond, cfg.RateLimit.Burst))
		}
		svr.Use(middleware.LoggingMiddleware())

		if err := svr.Register(&EchoService{}); err != nil {
			fmt.Fprintln(os.Stderr, "polyrpc-server: registering services:", err)
			os.Exit(1)
		}
		if err := svr.Start(reg); err != nil {
			fmt.Fprintln(os.Stderr, "polyrpc-server: starting", l.Protocol, "listener:", err)
			os.Exit(1)
		}
		log.Infof("%s listening on %s", l.Protocol, svr.ListenAddr())
		servers = append(servers, svr)
	}

	waitForShutdown()

	for _, svr := range servers {
		if err := svr.Stop(5 * time.Second); err != nil {
			log.Warnf("stop: %v", err)
		}
	}
}

func buildRegistry(cfg *config.ServerConfig) (registry.Registry, error) {
	if cfg.Etcd == nil {
		return nil, nil
	}
	return registry.NewEtcdRegistry(cfg.Etcd.Endpoints)
}

func applyLogLevel(level string) {
	switch level {
	case "debug":
		logging.SetLevel(logging.LevelDebug)
	case "warn":
		logging.SetLevel(logging.LevelWarn)
	case "error":
		logging.SetLevel(logging.LevelError)
	default:
		logging.SetLevel(logging.LevelInfo)
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

// EchoService is the sample service exposed by an unconfigured
// deployment, so a freshly started polyrpc-server has something to
// call while real services are wired in.
type EchoService struct{}

// EchoArgs carries a single message field to round-trip.
type EchoArgs struct {
	Message string
}

// EchoReply carries the echoed message back.
type EchoReply struct {
	Message string
}

// Echo returns args.Message unchanged.
func (e *EchoService) Echo(args *EchoArgs, reply *EchoReply) error {
	reply.Message = args.Message
	return nil
}
