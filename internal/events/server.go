package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer runs a NATS server inside the process so a host can publish
// events without separate infrastructure
type EmbeddedServer struct {
	ns *server.Server
}

// StartEmbedded starts a server on host:port. Port -1 picks a free port.
func StartEmbedded(host string, port int, startTimeout time.Duration) (*EmbeddedServer, error) {
	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   port,
		NoSigs: true,
		NoLog:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	ns.Start()
	if !ns.ReadyForConnections(startTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready for connections")
	}
	return &EmbeddedServer{ns: ns}, nil
}

// ClientURL returns the URL clients connect to
func (s *EmbeddedServer) ClientURL() string {
	return s.ns.ClientURL()
}

// Shutdown stops the server and waits for it to exit
func (s *EmbeddedServer) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
