package dhcp4c

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/AdguardTeam/dhcp4c/internal/dhcp4lease"
	"github.com/AdguardTeam/dhcp4c/internal/dhcp4wire"
)

// Reason is the hook-script reason string, per spec.md §6.5.
type Reason string

// Defined [Reason] values.
const (
	ReasonPreinit   Reason = "PREINIT"
	ReasonCarrier   Reason = "CARRIER"
	ReasonNoCarrier Reason = "NOCARRIER"
	ReasonBound     Reason = "BOUND"
	ReasonRenew     Reason = "RENEW"
	ReasonRebind    Reason = "REBIND"
	ReasonReboot    Reason = "REBOOT"
	ReasonExpire    Reason = "EXPIRE"
	ReasonFail      Reason = "FAIL"
	ReasonIPv4LL    Reason = "IPV4LL"
	ReasonStop      Reason = "STOP"
	ReasonRelease   Reason = "RELEASE"
	ReasonInform    Reason = "INFORM"
	ReasonTest      Reason = "TEST"
)

// HookRunner invokes the user hook script, per spec.md §6.5.
type HookRunner interface {
	Run(ctx context.Context, infoFilePath string, reason Reason) error
}

// ExecHookRunner invokes an external script with the two positional
// arguments spec.md §6.5 specifies: an info-file path and the reason
// string. The script inherits the calling process's environment
// unchanged; no lease variables are added to it.
type ExecHookRunner struct {
	// Path is the hook script to invoke. If empty, Run is a no-op.
	Path string
}

// type check
var _ HookRunner = (*ExecHookRunner)(nil)

// Run implements the [HookRunner] interface for *ExecHookRunner.
func (r *ExecHookRunner) Run(ctx context.Context, infoFilePath string, reason Reason) (err error) {
	if r.Path == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, r.Path, infoFilePath, string(reason))
	cmd.Env = os.Environ()

	if err = cmd.Run(); err != nil {
		return errors.Annotate(err, "running hook script: %w")
	}

	return nil
}

// Env is the set of environment variables the hook-script env-exporter
// produces from an accepted message and its derived lease, per spec.md
// §6.5's table. Keys are the bare variable names, without the
// "new_"/"old_" prefix; [Env.Lines] renders both prefixes.
type Env map[string]string

// BuildEnv renders the variables for msg/lease under their bare names
// ([Env.Lines] adds the "new_"/"old_" prefix), per spec.md §6.5;
// string-valued options are escaped with [dhcp4wire.RenderString]. A
// nil msg or lease (no accepted message yet, e.g. on PREINIT) yields an
// empty Env.
func BuildEnv(msg *dhcp4wire.Message, lease *dhcp4lease.Lease, useMSCSR bool) Env {
	env := make(Env)
	if msg == nil || lease == nil {
		return env
	}

	env["ip_address"] = lease.YIAddr.String()
	if len(lease.Netmask) == net.IPv4len {
		env["subnet_mask"] = net.IP(lease.Netmask).String()
	}
	if lease.Broadcast != nil {
		env["broadcast_address"] = lease.Broadcast.String()
	}
	if lease.ServerID != nil {
		env["dhcp_server_identifier"] = lease.ServerID.String()
	}

	env["dhcp_lease_time"] = strconv.FormatUint(uint64(lease.LeaseTime), 10)
	if !lease.Infinite() {
		env["dhcp_renewal_time"] = strconv.FormatUint(uint64(lease.T1), 10)
		env["dhcp_rebinding_time"] = strconv.FormatUint(uint64(lease.T2), 10)
	}

	if hostname, ok := msg.Options.GetString(dhcp4wire.OptionHostName); ok {
		env["host_name"] = dhcp4wire.RenderString([]byte(hostname))
	}
	if domain, ok := msg.Options.GetString(dhcp4wire.OptionDomainName); ok {
		env["domain_name"] = dhcp4wire.RenderString([]byte(domain))
	}

	if dns, ok := msg.Options.GetIPList(dhcp4wire.OptionDomainNameServer); ok {
		env["domain_name_servers"] = joinIPs(dns)
	}

	if search, err := msg.Options.DomainSearch(); err == nil && len(search) > 0 {
		env["domain_search"] = dhcp4wire.RenderString([]byte(strings.Join(search, " ")))
	}

	routes, err := msg.Options.Routes(useMSCSR)
	if err == nil && len(routes) > 0 {
		if msg.Options.Has(dhcp4wire.OptionClasslessStaticRoute) ||
			(useMSCSR && msg.Options.Has(dhcp4wire.OptionMSClasslessStaticRoute)) {
			env["classless_static_routes"] = renderRoutes(routes)
		} else {
			if routers, ok := msg.Options.GetIPList(dhcp4wire.OptionRouter); ok {
				env["routers"] = joinIPs(routers)
			}
			if static, ok := msg.Options.GetIPList(dhcp4wire.OptionStaticRoute); ok {
				env["static_routes"] = joinIPs(static)
			}
		}
	}

	return env
}

// Lines renders env as `KEY=value` lines, prefixed "new_" (or "old_" if
// old is true), in a stable (sorted) order, suitable for an info file
// or a subprocess environment.
func (env Env) Lines(old bool) []string {
	prefix := "new_"
	if old {
		prefix = "old_"
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sortStrings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s%s=%s", prefix, k, env[k]))
	}

	return lines
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func joinIPs(ips [][4]byte) string {
	parts := make([]string, 0, len(ips))
	for _, ip := range ips {
		parts = append(parts, net.IP(ip[:]).String())
	}

	return strings.Join(parts, " ")
}

func renderRoutes(routes []dhcp4wire.Route) string {
	parts := make([]string, 0, len(routes))
	for _, r := range routes {
		parts = append(parts, fmt.Sprintf(
			"%s/%s,%s",
			net.IP(r.Destination[:]).String(),
			net.IP(r.Netmask[:]).String(),
			net.IP(r.Gateway[:]).String(),
		))
	}

	return strings.Join(parts, " ")
}
