package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/synapse/internal/engine"
	"github.com/alfredjeanlab/synapse/internal/graph"
	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/presence"
	"github.com/alfredjeanlab/synapse/internal/store"
	"github.com/alfredjeanlab/synapse/internal/store/memory"
	"github.com/alfredjeanlab/synapse/internal/tabs/tabstest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// flakyStore fails saves while fail is set.
type flakyStore struct {
	store.GraphStore
	fail atomic.Bool
}

func (s *flakyStore) Save(ctx context.Context, snap *model.Snapshot) error {
	if s.fail.Load() {
		return errors.New("disk full")
	}
	return s.GraphStore.Save(ctx, snap)
}

type testEnv struct {
	srv     *Server
	hub     *Hub
	eng     *engine.Engine
	factory *tabstest.Factory
	store   *flakyStore
	handler http.Handler
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires a real engine over an in-memory store and fake views.
func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := quietLogger()
	hub := NewHub(logger)
	st := &flakyStore{GraphStore: store.New(memory.New())}
	mgr, err := graph.Open(ctx, st, graph.Options{Publisher: hub, Logger: logger})
	if err != nil {
		t.Fatalf("graph.Open: %v", err)
	}
	factory := tabstest.NewFactory()
	factory.HTML = "<html><head><title>Doc</title></head><body><article><p>Hello there, reader.</p></article></body></html>"
	eng := engine.New(mgr, factory, engine.Options{
		Publisher:        hub,
		Logger:           logger,
		PositionDebounce: time.Hour,
		Retention:        -1,
	})
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("engine.Start: %v", err)
	}
	t.Cleanup(func() {
		_ = eng.Stop(context.Background())
		_ = hub.Close()
	})
	srv := New(eng, hub, Options{Logger: logger, Presence: presence.New(logger)})
	return &testEnv{
		srv:     srv,
		hub:     hub,
		eng:     eng,
		factory: factory,
		store:   st,
		handler: srv.NewHTTPHandler(),
	}
}

// dialGRPC serves the env's gRPC server over an in-memory listener.
func dialGRPC(t *testing.T, env *testEnv) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(env.srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(JSONCodec{}.Name())),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// requireCode asserts that err is a gRPC error with the given status code.
func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected gRPC error with code %v, got nil", code)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != code {
		t.Fatalf("expected code=%v, got %v (%s)", code, st.Code(), st.Message())
	}
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want int
	}{
		{"not found", model.NotFoundf("node %s", "n1"), classNotFound},
		{"wrapped not found", errors.Join(errors.New("ctx"), model.ErrNotFound), classNotFound},
		{"input", inputError("tabId is required"), classInvalid},
		{"import", model.InvalidImportf("bad version"), classInvalid},
		{"persistence", &model.PersistenceError{Op: "save", Err: errors.New("disk full")}, classUnavailable},
		{"stopped", engine.ErrStopped, classUnavailable},
		{"other", errors.New("boom"), classInternal},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.err); got != tc.want {
				t.Fatalf("classify(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestCall_UnknownMethod(t *testing.T) {
	env := newTestServer(t)
	_, err := env.srv.call(context.Background(), "noSuchThing", nil)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCall_InvalidParams(t *testing.T) {
	env := newTestServer(t)
	_, err := env.srv.call(context.Background(), "createTab", json.RawMessage(`{"url":`))
	if classify(err) != classInvalid {
		t.Fatalf("expected invalid params error, got %v", err)
	}
}

func TestMethods_Sorted(t *testing.T) {
	env := newTestServer(t)
	methods := env.srv.Methods()
	if len(methods) != len(env.srv.commands) {
		t.Fatalf("Methods() returned %d names, table has %d", len(methods), len(env.srv.commands))
	}
	for i := 1; i < len(methods); i++ {
		if methods[i-1] >= methods[i] {
			t.Fatalf("methods not sorted at %d: %q >= %q", i, methods[i-1], methods[i])
		}
	}
}

func TestRPCName(t *testing.T) {
	if got := rpcName("createTab"); got != "CreateTab" {
		t.Fatalf("rpcName = %q", got)
	}
	if got := FullMethod("getGraphData"); got != "/synapse.v1.Engine/GetGraphData" {
		t.Fatalf("FullMethod = %q", got)
	}
}

func TestGRPC_CreateTabAndGraph(t *testing.T) {
	env := newTestServer(t)
	conn := dialGRPC(t, env)
	ctx := context.Background()

	var tab struct {
		ID     string `json:"id"`
		NodeID string `json:"nodeId"`
		URL    string `json:"url"`
	}
	if err := conn.Invoke(ctx, FullMethod("createTab"), map[string]string{"url": "https://a.example"}, &tab); err != nil {
		t.Fatalf("CreateTab: %v", err)
	}
	if tab.ID == "" || tab.NodeID == "" {
		t.Fatalf("expected tab with node, got %+v", tab)
	}

	var data model.GraphData
	if err := conn.Invoke(ctx, FullMethod("getGraphData"), struct{}{}, &data); err != nil {
		t.Fatalf("GetGraphData: %v", err)
	}
	if len(data.Nodes) != 1 || data.Nodes[0].ID != tab.NodeID {
		t.Fatalf("expected the tab's node in the graph, got %+v", data.Nodes)
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	env := newTestServer(t)
	conn := dialGRPC(t, env)

	for _, tc := range []struct {
		name   string
		method string
		params any
		code   codes.Code
	}{
		{"SwitchTab/MissingID", "switchTab", struct{}{}, codes.InvalidArgument},
		{"GetNode/MissingID", "getNode", struct{}{}, codes.InvalidArgument},
		{"GetNode/NotFound", "getNode", map[string]string{"nodeId": "nope"}, codes.NotFound},
		{"ReopenNode/NotFound", "reopenNode", map[string]string{"nodeId": "nope"}, codes.NotFound},
		{"LoadTree/NotFound", "loadTree", map[string]string{"treeId": "nope"}, codes.NotFound},
		{"SaveTree/NoNodes", "saveTree", map[string]string{"name": "x"}, codes.InvalidArgument},
		{"SwitchSession/NotFound", "switchSession", map[string]string{"sessionId": "nope"}, codes.NotFound},
		{"ImportSession/Empty", "importSession", map[string]string{"version": "1.0"}, codes.InvalidArgument},
		{"Cleanup/BadDuration", "cleanup", map[string]string{"olderThan": "soon"}, codes.InvalidArgument},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var out json.RawMessage
			err := conn.Invoke(context.Background(), FullMethod(tc.method), tc.params, &out)
			requireCode(t, err, tc.code)
		})
	}
}

func TestGRPC_PersistenceFailureIsUnavailable(t *testing.T) {
	env := newTestServer(t)
	conn := dialGRPC(t, env)
	env.store.fail.Store(true)

	var out json.RawMessage
	err := conn.Invoke(context.Background(), FullMethod("createSession"), map[string]string{"name": "Work"}, &out)
	requireCode(t, err, codes.Unavailable)
}

func TestGRPC_Health(t *testing.T) {
	env := newTestServer(t)
	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(env.srv)
	go func() { _ = gs.Serve(lis) }()
	defer gs.Stop()

	// Health stays on the proto codec.
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}
