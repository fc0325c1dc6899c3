package netwatch

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// PollSource diffs the interface list on an interval. It works on every
// platform and is the fallback when netlink is unavailable.
type PollSource struct {
	interval time.Duration
	logger   *slog.Logger
	list     func(ctx context.Context) (psnet.InterfaceStatList, error)
}

func NewPollSource(interval time.Duration, logger *slog.Logger) *PollSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PollSource{
		interval: interval,
		logger:   logger,
		list:     psnet.InterfacesWithContext,
	}
}

func (p *PollSource) Name() string { return "poll" }

func (p *PollSource) Watch(ctx context.Context, out chan<- Change) error {
	prev, err := p.snapshot(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cur, err := p.snapshot(ctx)
			if err != nil {
				p.logger.Debug("Failed to list interfaces", "error", err)
				continue
			}
			for _, name := range diff(prev, cur) {
				if !send(ctx, out, Change{Interface: name, Source: "poll"}) {
					return ctx.Err()
				}
			}
			prev = cur
		}
	}
}

// snapshot maps interface name to a fingerprint of its flags and addresses
func (p *PollSource) snapshot(ctx context.Context) (map[string]string, error) {
	ifaces, err := p.list(ctx)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]string, len(ifaces))
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}
		addrs := make([]string, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
		slices.Sort(addrs)
		flags := slices.Clone(iface.Flags)
		slices.Sort(flags)
		snap[iface.Name] = strings.Join(flags, ",") + "|" + strings.Join(addrs, ",")
	}
	return snap, nil
}

// diff returns the sorted names of interfaces added, removed or changed
func diff(prev, cur map[string]string) []string {
	var changed []string
	for name, fp := range cur {
		if old, ok := prev[name]; !ok || old != fp {
			changed = append(changed, name)
		}
	}
	for name := range prev {
		if _, ok := cur[name]; !ok {
			changed = append(changed, name)
		}
	}
	slices.Sort(changed)
	return changed
}
