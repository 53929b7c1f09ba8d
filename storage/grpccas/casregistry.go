package grpccas

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"xdao.co/attest/storage"
	"xdao.co/attest/storage/casregistry"
)

// headCheckTimeout bounds the --grpc-require-head call when --grpc-timeout is unset.
const headCheckTimeout = 5 * time.Second

// feedFlags configure a client of the audit feed served by xdao-attest-eventd.
type feedFlags struct {
	target      string
	timeout     time.Duration
	maxMsgBytes int
	requireHead bool
}

var feed feedFlags

func (f *feedFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.target, "grpc-target", "", "Event daemon host:port (for --backend=grpc)")
	fs.DurationVar(&f.timeout, "grpc-timeout", 0, "Per-RPC timeout (for --backend=grpc)")
	fs.IntVar(&f.maxMsgBytes, "grpc-max-msg-bytes", 0, "Max gRPC message size in bytes; 0 uses grpc defaults")
	fs.BoolVar(&f.requireHead, "grpc-require-head", false, "Fail to open unless the daemon reports an audit head")
}

func (f *feedFlags) open() (storage.CAS, func() error, error) {
	target := strings.TrimSpace(f.target)
	if target == "" {
		return nil, nil, errors.New("missing --grpc-target")
	}
	client, err := Dial(target, DialOptions{MaxMsgBytes: f.maxMsgBytes})
	if err != nil {
		return nil, nil, err
	}
	client.Timeout = f.timeout
	if f.requireHead {
		if err := checkHead(client); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("grpccas: %s: %w", target, err)
		}
	}
	return client, client.Close, nil
}

func checkHead(c *Client) error {
	ctx := context.Background()
	if c.Timeout <= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, headCheckTimeout)
		defer cancel()
	}
	head, err := c.Head(ctx)
	if err != nil {
		return err
	}
	if !head.Defined() {
		return errors.New("audit log is empty")
	}
	return nil
}

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:          "grpc",
		Description:   "Audit feed of a remote xdao-attest-eventd (read-only)",
		Usage:         casregistry.UsageCLI,
		RegisterFlags: feed.register,
		Open:          feed.open,
	})
}
