package casregistry

// Usage says which binaries may open a backend. The event daemon serves the
// audit feed, so it only accepts backends that hold records locally; client
// backends such as grpc are limited to the CLI.
type Usage uint8

const (
	UsageCLI Usage = 1 << iota
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
