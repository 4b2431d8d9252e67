/*
Package status publishes a running cluster to other processes: an HTTP
endpoint that serves its connection info and a grpc.health.v1 service that
reports SERVING while the cluster is up.
*/
package status

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/grpc_server"
	"github.com/tedsuo/ifrit/http_server"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gopkg.in/yaml.v3"

	"github.com/tedsuo/minicluster"
	"github.com/tedsuo/minicluster/logging"
)

// ServiceName is the health service reported for the cluster.
const ServiceName = "minicluster"

type Server struct {
	cluster minicluster.Cluster
	health  *health.Server
	logger  *slog.Logger
}

// New returns a Server that reports NOT_SERVING until SetServing is called.
func New(cluster minicluster.Cluster, logger *slog.Logger) *Server {
	s := &Server{
		cluster: cluster,
		health:  health.NewServer(),
		logger:  logging.OrDiscard(logger),
	}
	s.SetServing(false)
	return s
}

func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	s.logger.Debug("cluster health changed", "status", status.String())
}

func (s *Server) Serving() bool {
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

// Handler serves GET /info with the connection info as YAML and GET /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/info", s.info)
	mux.HandleFunc("/healthz", s.healthz)
	return mux
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := yaml.Marshal(s.cluster.ConnectionInfo())
	if err != nil {
		s.logger.Error("failed to marshal connection info", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Write(body)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if !s.Serving() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not serving\n"))
		return
	}
	w.Write([]byte("ok\n"))
}

func (s *Server) HTTPRunner(addr string) ifrit.Runner {
	return http_server.New(addr, s.Handler())
}

func (s *Server) GRPCRunner(addr string) ifrit.Runner {
	return grpc_server.NewGRPCServer(addr, nil, s.health, registerHealth)
}

func registerHealth(server *grpc.Server, impl healthpb.HealthServer) {
	healthpb.RegisterHealthServer(server, impl)
}

// ServingRunner reports SERVING from the moment it is ready until it is
// signalled. Run it after the cluster so it only turns on once Start is done.
func (s *Server) ServingRunner() ifrit.Runner {
	return ifrit.RunFunc(func(signals <-chan os.Signal, ready chan<- struct{}) error {
		s.SetServing(true)
		close(ready)

		<-signals
		s.SetServing(false)
		return nil
	})
}
