package agenda

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/grpcx"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/httpx"
)

type fakeAgendaServer struct {
	booked    map[string]bool
	lastReqID string
}

func (s *fakeAgendaServer) create(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(grpcx.RequestIDMetadataKey); len(vals) > 0 {
			s.lastReqID = vals[0]
		}
	}
	slot := in.GetFields()["customer_id"].GetStringValue() + "@" + in.GetFields()["start_time"].GetStringValue()
	if s.booked[slot] {
		return nil, status.Error(codes.AlreadyExists, "customer already has a booking at "+in.GetFields()["start_time"].GetStringValue())
	}
	s.booked[slot] = true
	return structpb.NewStruct(map[string]any{"id": "appt-" + in.GetFields()["service_order_id"].GetStringValue()})
}

var fakeAgendaDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "CreateAppointment",
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			fake := srv.(*fakeAgendaServer)
			if interceptor == nil {
				return fake.create(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CreateAppointmentMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fake.create(ctx, req.(*structpb.Struct))
			})
		},
	}},
}

func startFakeAgenda(t *testing.T) (*fakeAgendaServer, string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcx.UnaryServerRequestIDInterceptor()))
	fake := &fakeAgendaServer{booked: map[string]bool{}}
	srv.RegisterService(&fakeAgendaDesc, fake)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, hs)

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)
	return fake, lis.Addr().String()
}

func TestGRPCProvider_CreateAndConflict(t *testing.T) {
	fake, addr := startFakeAgenda(t)

	p, err := NewGRPCProvider(context.Background(), addr, 2*time.Second)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ctx = httpx.ContextWithRequestID(ctx, "req-grpc")

	id, err := p.CreateAppointment(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "appt-os-1", id)
	assert.Equal(t, "req-grpc", fake.lastReqID)

	_, err = p.CreateAppointment(ctx, sampleRequest())
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Contains(t, ConflictMessage(err), "customer already has a booking")
}

func TestGRPCProvider_ReadyCheck(t *testing.T) {
	_, addr := startFakeAgenda(t)

	p, err := NewGRPCProvider(context.Background(), addr, 2*time.Second)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, p.ReadyCheck()(ctx))
}
