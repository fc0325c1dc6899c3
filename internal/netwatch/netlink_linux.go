package netwatch

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// NetlinkSource listens for rtnetlink link and address events
type NetlinkSource struct {
	fd     int
	logger *slog.Logger
}

// OpenNetlink subscribes to link and IPv4/IPv6 address notifications
func OpenNetlink(logger *slog.Logger) (*NetlinkSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("failed to open netlink socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: unix.RTMGRP_LINK | unix.RTMGRP_IPV4_IFADDR | unix.RTMGRP_IPV6_IFADDR,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind netlink socket: %w", err)
	}

	// Wake up periodically so cancellation is noticed
	tv := unix.NsecToTimeval(int64(time.Second))
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set netlink receive timeout: %w", err)
	}

	return &NetlinkSource{fd: fd, logger: logger}, nil
}

func (n *NetlinkSource) Name() string { return "netlink" }

func (n *NetlinkSource) Watch(ctx context.Context, out chan<- Change) error {
	defer unix.Close(n.fd)

	buf := make([]byte, 1<<16)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		nr, _, err := unix.Recvfrom(n.fd, buf, 0)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				continue
			}
			if err == unix.ENOBUFS {
				// Kernel dropped events; something changed anyway
				if !send(ctx, out, Change{Interface: "*", Source: "netlink"}) {
					return ctx.Err()
				}
				continue
			}
			return fmt.Errorf("netlink receive failed: %w", err)
		}

		for _, index := range parseInterfaceEvents(buf[:nr]) {
			if !send(ctx, out, Change{Interface: interfaceName(index), Source: "netlink"}) {
				return ctx.Err()
			}
		}
	}
}

// parseInterfaceEvents returns the interface index of every link or address
// message in a netlink datagram. ifinfomsg and ifaddrmsg both carry the
// index at offset 4.
func parseInterfaceEvents(b []byte) []int {
	var indexes []int
	for len(b) >= unix.SizeofNlMsghdr {
		msgLen := int(binary.NativeEndian.Uint32(b[0:4]))
		msgType := binary.NativeEndian.Uint16(b[4:6])
		if msgLen < unix.SizeofNlMsghdr || msgLen > len(b) {
			break
		}

		switch msgType {
		case unix.RTM_NEWLINK, unix.RTM_DELLINK, unix.RTM_NEWADDR, unix.RTM_DELADDR:
			body := b[unix.SizeofNlMsghdr:msgLen]
			if len(body) >= 8 {
				indexes = append(indexes, int(int32(binary.NativeEndian.Uint32(body[4:8]))))
			}
		}

		// Messages are 4-byte aligned
		next := (msgLen + unix.NLMSG_ALIGNTO - 1) &^ (unix.NLMSG_ALIGNTO - 1)
		if next > len(b) {
			break
		}
		b = b[next:]
	}
	return indexes
}

func interfaceName(index int) string {
	if iface, err := net.InterfaceByIndex(index); err == nil {
		return iface.Name
	}
	return fmt.Sprintf("if%d", index)
}
