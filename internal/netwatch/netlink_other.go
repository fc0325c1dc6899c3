//go:build !linux

package netwatch

import (
	"context"
	"errors"
	"log/slog"
)

// NetlinkSource is only available on Linux
type NetlinkSource struct{}

func OpenNetlink(_ *slog.Logger) (*NetlinkSource, error) {
	return nil, errors.ErrUnsupported
}

func (n *NetlinkSource) Name() string { return "netlink" }

func (n *NetlinkSource) Watch(ctx context.Context, _ chan<- Change) error {
	return errors.ErrUnsupported
}
