// Package grpcclient reenvía resúmenes de inventario a un colector gRPC.
// Los mensajes son google.protobuf.Struct, así que no hace falta código
// generado en ninguno de los dos lados.
package grpcclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"simfleet-svr/internal/sim"
)

const PushSnapshotMethod = "/simfleet.Collector/PushSnapshot"

type GRPCClient struct {
	conn    *grpc.ClientConn
	logger  *slog.Logger
	Timeout time.Duration
}

// NewGRPCClient no conecta todavía: grpc lo hace en la primera llamada.
func NewGRPCClient(addr string, lg *slog.Logger, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, logger: lg.With("component", "grpcclient"), Timeout: 5 * time.Second}, nil
}

func (g *GRPCClient) Close() error {
	return g.conn.Close()
}

func SummaryToStruct(s sim.Summary) (*structpb.Struct, error) {
	counts := func(m map[string]int) map[string]any {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	errs := make(map[string]any, len(s.Errors))
	for k, v := range s.Errors {
		errs[k] = v
	}
	return structpb.NewStruct(map[string]any{
		"generated_at": s.GeneratedAt.UTC().Format(time.RFC3339),
		"total":        s.Total,
		"by_provider":  counts(s.ByProvider),
		"by_status":    counts(s.ByStatus),
		"by_operator":  counts(s.ByOperator),
		"errors":       errs,
	})
}

// SendSnapshot devuelve error si el colector responde success=false.
func (g *GRPCClient) SendSnapshot(ctx context.Context, s sim.Summary) error {
	req, err := SummaryToStruct(s)
	if err != nil {
		return fmt.Errorf("grpc snapshot: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	res := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, PushSnapshotMethod, req, res); err != nil {
		return fmt.Errorf("grpc snapshot: %w", err)
	}
	if ok, found := res.GetFields()["success"]; found && !ok.GetBoolValue() {
		g.logger.Warn("Forwarder: collector rejected snapshot", "total", s.Total)
		return fmt.Errorf("grpc snapshot: rejected by collector")
	}
	return nil
}
