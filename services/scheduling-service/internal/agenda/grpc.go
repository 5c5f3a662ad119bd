package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/grpcx"
)

const (
	ServiceName             = "clinic.agenda.v1.AgendaService"
	CreateAppointmentMethod = "/" + ServiceName + "/CreateAppointment"
)

// GRPCProvider calls the agenda service over gRPC. Messages are google.protobuf.Struct so the
// client needs no generated stubs; the server maps overlapping bookings to AlreadyExists.
type GRPCProvider struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

func NewGRPCProvider(ctx context.Context, addr string, timeout time.Duration) (*GRPCProvider, error) {
	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("dial agenda %s: %w", addr, err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GRPCProvider{conn: conn, timeout: timeout}, nil
}

func (p *GRPCProvider) Close() error {
	return p.conn.Close()
}

func (p *GRPCProvider) CreateAppointment(ctx context.Context, req Request) (string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"customer_id":      req.CustomerID,
		"customer_name":    req.CustomerName,
		"employee_id":      req.EmployeeID,
		"branch_id":        req.BranchID,
		"service_order_id": req.ServiceOrderID,
		"title":            req.Title,
		"description":      req.Description,
		"note":             req.Note,
		"start_time":       req.Start.Format(time.RFC3339),
		"end_time":         req.End.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("build agenda request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, CreateAppointmentMethod, in, out); err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.AlreadyExists {
			return "", &ConflictError{Detail: st.Message()}
		}
		return "", fmt.Errorf("agenda rpc failed: %w", err)
	}

	id := out.GetFields()["id"].GetStringValue()
	if id == "" {
		return "", errors.New("agenda response missing appointment id")
	}
	return id, nil
}

func (p *GRPCProvider) ReadyCheck() func(context.Context) error {
	return grpcx.HealthCheck(p.conn, ServiceName)
}
