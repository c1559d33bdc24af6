package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"raftsim/raft"
)

// serviceName and method name describe the single unary RPC this
// transport exposes: Send(Envelope) returns (Envelope). protoc-gen-go-grpc
// would normally generate this ServiceDesc from a .proto file; there is
// no protoc in this exercise, so it's hand-written instead, and the
// method handler below does the request decoding the generated stub
// would otherwise do for us.
const (
	serviceName = "raftsim.transport.Transport"
	sendMethod  = "Send"
)

// Handler is what a Server calls for every Envelope it receives.
// cmd/server adapts raft.Node.HandleMessage into this shape; Server itself
// knows nothing about raft semantics, only wire framing.
type Handler func(env Envelope)

// transportService is the interface grpc.ServiceDesc.HandlerType points
// at (generated code normally declares an XxxServer interface for this;
// there's no protoc here to generate one, so it's hand-written).
type transportService interface {
	handle(Envelope)
}

// handlerFunc adapts a bare Handler into a transportService.
type handlerFunc struct{ fn Handler }

func (h handlerFunc) handle(env Envelope) { h.fn(env) }

func sendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	var env Envelope
	if err := dec(&env); err != nil {
		return nil, fmt.Errorf("transport: failed to decode envelope: %w", err)
	}
	srv.(transportService).handle(env)
	return &Envelope{}, nil
}

// serviceDesc is the hand-written equivalent of a generated
// _grpc.pb.go's ServiceDesc.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*transportService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: sendMethod, Handler: sendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transport/grpc.go",
}

// Server exposes a Handler over grpc.
type Server struct {
	grpcServer *grpc.Server
	logger     *raft.Logger
}

// NewServer registers handler as the service implementation.
func NewServer(handler Handler, logger *raft.Logger) *Server {
	s := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	s.RegisterService(&serviceDesc, handlerFunc{fn: handler})
	return &Server{grpcServer: s, logger: logger}
}

// Start listens on address and serves until Stop is called. It blocks,
// so callers run it in its own goroutine.
func (s *Server) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("transport: failed to listen on %s: %w", address, err)
	}
	s.logger.Info("transport server listening on %s", address)
	return s.grpcServer.Serve(lis)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// Client dials peers on demand and caches the connection, grounded on the
// teacher's raft/rpc_client.go getConnection dial-cache shape.
type Client struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewClient returns a Client with an empty connection cache.
func NewClient() *Client {
	return &Client{conns: make(map[string]*grpc.ClientConn)}
}

func (c *Client) getConnection(address string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[address]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(address,
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to dial %s: %w", address, err)
	}
	c.conns[address] = conn
	return conn, nil
}

// Send delivers env to the peer listening at address.
func (c *Client) Send(ctx context.Context, address string, env Envelope) error {
	conn, err := c.getConnection(address)
	if err != nil {
		return err
	}
	var reply Envelope
	fullMethod := fmt.Sprintf("/%s/%s", serviceName, sendMethod)
	if err := conn.Invoke(ctx, fullMethod, &env, &reply); err != nil {
		return fmt.Errorf("transport: send to %s failed: %w", address, err)
	}
	return nil
}

// Close tears down every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("transport: failed to close connection to %s: %w", addr, err)
		}
	}
	return nil
}
