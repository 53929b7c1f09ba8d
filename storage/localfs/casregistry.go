package localfs

import (
	"flag"
	"fmt"

	"xdao.co/attest/storage"
	"xdao.co/attest/storage/casregistry"
)

var (
	flagLocalDir      string
	flagLocalReadOnly bool
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem CAS (directory)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagLocalDir, "localfs-dir", "", "LocalFS CAS directory (for --backend=localfs)")
			fs.BoolVar(&flagLocalReadOnly, "localfs-readonly", false, "Reject writes; the directory must exist (for --backend=localfs)")
		},
		Open: func() (storage.CAS, func() error, error) {
			if flagLocalDir == "" {
				return nil, nil, fmt.Errorf("missing --localfs-dir")
			}
			var opts []Option
			if flagLocalReadOnly {
				opts = append(opts, ReadOnly())
			}
			cas, err := New(flagLocalDir, opts...)
			return cas, nil, err
		},
	})
}
