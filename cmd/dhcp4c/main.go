//go:build linux

// Command dhcp4c is a DHCPv4 client daemon for one network interface.
// Flag parsing and configuration-file loading are intentionally thin:
// spec.md §1 names them a non-goal, so this entry point wires the
// internal components together rather than exposing the full CLI
// surface the original implementation has. It builds on Linux only,
// matching internal/linksock's current RawDevice implementation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"

	"github.com/AdguardTeam/dhcp4c/internal/clientid"
	"github.com/AdguardTeam/dhcp4c/internal/dhcp4c"
	"github.com/AdguardTeam/dhcp4c/internal/dhcp4lease"
	"github.com/AdguardTeam/dhcp4c/internal/dhcpeloop"
	"github.com/AdguardTeam/dhcp4c/internal/linksock"
	"github.com/AdguardTeam/dhcp4c/internal/svcutil"
)

// daemonizedEnv is set in the environment of a re-exec'd child started
// by -daemonize, so that child does not try to daemonize itself again.
const daemonizedEnv = "DHCP4C_DAEMONIZED=1"

// Exit codes, matching the BSD sysexits.h conventions the teacher's own
// CLI entry points use (e.g. EX_USAGE=64).
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 64
	exitConflict = 70
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	var (
		ifaceName   = flag.String("interface", "", "network interface to run the client on")
		stateDir    = flag.String("state-dir", "/var/lib/dhcp4c", "directory for the lease file")
		configDir   = flag.String("config-dir", "/etc/dhcp4c", "directory for the DUID file")
		runDir      = flag.String("run-dir", "/var/run/dhcp4c", "directory for the PID file")
		hookPath    = flag.String("hook", "", "hook script invoked on state transitions")
		testMode    = flag.Bool("test", false, "ignore any persisted lease and do not write the lease file; acquisition otherwise runs as usual")
		request     = flag.String("request", "", "requested IPv4 address for the initial DISCOVER")
		arpEnabled  = flag.Bool("arp", true, "probe offered addresses with ARP before binding")
		ipv4ll      = flag.Bool("ipv4ll", true, "fall back to RFC 3927 link-local self-assignment")
		lastLease   = flag.Bool("lastlease", false, "attempt INIT-REBOOT from a persisted lease at startup even if it has expired")
		keepOnStop  = flag.Bool("persistent", false, "leave the lease file in place when stopped")
		requestOpts = flag.String("request-options", "", "comma-separated option names/codes to request")
		daemonize   = flag.Bool("daemonize", false, "detach into the background as a session leader and exit")
	)
	flag.Parse()

	logger := slogutil.New(&slogutil.Config{Format: slogutil.FormatAdGuardLegacy, Level: slog.LevelInfo})

	if *daemonize && os.Getenv("DHCP4C_DAEMONIZED") == "" {
		return daemonizeSelf(logger)
	}

	if *ifaceName == "" {
		logger.Error("missing required flag", "flag", "interface")

		return exitUsage
	}

	ifi, err := net.InterfaceByName(*ifaceName)
	if err != nil {
		logger.Error("looking up interface", slogutil.KeyError, err)

		return exitFailure
	}

	pidPath := filepath.Join(*runDir, "dhcp4c-"+*ifaceName+".pid")

	pf, err := svcutil.Acquire(pidPath)
	if err != nil {
		if errors.Is(err, svcutil.ErrAlreadyRunning) {
			logger.Error("already running", "pid_file", pidPath)

			return exitConflict
		}

		logger.Error("acquiring pid file", slogutil.KeyError, err)

		return exitFailure
	}
	defer func() {
		if relErr := pf.Release(); relErr != nil {
			logger.Warn("releasing pid file", slogutil.KeyError, relErr)
		}
	}()

	duidPath := filepath.Join(*configDir, "dhcp4c.duid")

	duid, err := clientid.LoadOrCreateDUID(duidPath, ifi.HardwareAddr, time.Now())
	if err != nil {
		logger.Error("loading duid", slogutil.KeyError, err)

		return exitFailure
	}

	cfg := &dhcp4c.ClientConfig{
		Logger:        logger,
		InterfaceName: *ifaceName,
		HardwareAddr:  ifi.HardwareAddr,
		StateDir:      *stateDir,
		ConfigDir:     *configDir,
		PackageName:   "dhcp4c",
		RequestPolicy: dhcp4c.RequestPolicy{Request: *requestOpts},
		ARP: dhcp4c.ARPPolicy{
			Enabled:       *arpEnabled,
			IPv4LLEnabled: *ipv4ll,
		},
		Persistence: dhcp4c.Persistence{
			KeepOnStop: *keepOnStop,
			LastLease:  *lastLease,
		},
		Timeout:       60 * time.Second,
		RebootTimeout: 10 * time.Second,
		TestMode:      *testMode,
	}

	if *request != "" {
		addr, aerr := parseAddr(*request)
		if aerr != nil {
			logger.Error("parsing -request", slogutil.KeyError, aerr)

			return exitUsage
		}

		cfg.RequestedAddress = addr
	}

	store := dhcp4lease.NewStore(filepath.Join(*stateDir, "dhcp4c-"+*ifaceName+".lease"))

	dev, err := linksock.OpenRawDevice(ifi)
	if err != nil {
		logger.Error("opening raw device", slogutil.KeyError, err)

		return exitFailure
	}
	defer func() {
		if closeErr := dev.Close(); closeErr != nil {
			logger.Warn("closing raw device", slogutil.KeyError, closeErr)
		}
	}()

	transport := linksock.NewTransport(dev, ifi.HardwareAddr)

	var hook dhcp4c.HookRunner = &dhcp4c.ExecHookRunner{Path: *hookPath}

	configure := func(_ context.Context, ev dhcp4c.ConfigureEvent) {
		logger.Info("state transition", "reason", ev.Reason)
	}

	loop := dhcpeloop.New(nil)

	iaid := clientid.IAIDFromIndex(ifi.Index)

	client, err := dhcp4c.NewClient(
		cfg, loop, transport, store, duid, iaid, hook, configure, nil, mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	)
	if err != nil {
		logger.Error("constructing client", slogutil.KeyError, err)

		return exitFailure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	events := make(chan dhcpeloop.ReadinessEvent)
	go linksock.ReadLoop(ctx, dev, func(raw []byte) {
		client.HandleDHCP(loop.Now(), raw)
	}, func(raw []byte) {
		client.HandleARP(loop.Now(), raw)
	}, events)

	if err = client.Start(loop.Now()); err != nil {
		logger.Error("starting client", slogutil.KeyError, err)

		return exitFailure
	}

	err = loop.Run(ctx, events)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("event loop exited", slogutil.KeyError, err)
		code = exitFailure
	}

	if stopErr := client.Stop(loop.Now(), !*keepOnStop); stopErr != nil {
		logger.Warn("stopping client", slogutil.KeyError, stopErr)
	}

	return code
}

// daemonizeSelf re-execs the current process with -daemonize stripped
// from its arguments, per spec.md §9's conventional fork+setsid
// daemonization note, and exits the parent once the child has started.
func daemonizeSelf(logger *slog.Logger) (code int) {
	args := make([]string, 0, len(os.Args)-1)
	for _, a := range os.Args[1:] {
		if a == "-daemonize" || a == "--daemonize" || a == "-daemonize=true" || a == "--daemonize=true" {
			continue
		}

		args = append(args, a)
	}

	pid, err := svcutil.Daemonize(args, daemonizedEnv)
	if err != nil {
		logger.Error("daemonizing", slogutil.KeyError, err)

		return exitFailure
	}

	logger.Info("daemonized", "pid", pid)

	return exitOK
}

// parseAddr parses a dotted-quad IPv4 address from an -request flag.
func parseAddr(s string) (addr netip.Addr, err error) {
	ip := net.ParseIP(s)
	if ip = ip.To4(); ip == nil {
		return netip.Addr{}, fmt.Errorf("%q is not a valid IPv4 address", s)
	}

	return netip.AddrFrom4([4]byte(ip)), nil
}
