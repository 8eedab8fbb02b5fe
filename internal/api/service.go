package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "ballot.v1.VotingService"

const (
	VotingService_CheckEligibility_FullMethodName = "/" + ServiceName + "/CheckEligibility"
	VotingService_StartSession_FullMethodName     = "/" + ServiceName + "/StartSession"
	VotingService_CastVote_FullMethodName         = "/" + ServiceName + "/CastVote"
	VotingService_EndSession_FullMethodName       = "/" + ServiceName + "/EndSession"
	VotingService_GetLiveTally_FullMethodName     = "/" + ServiceName + "/GetLiveTally"
	VotingService_WatchTally_FullMethodName       = "/" + ServiceName + "/WatchTally"
)

// VotingServiceServer is implemented by the ballot server.
type VotingServiceServer interface {
	CheckEligibility(context.Context, *CheckEligibilityRequest) (*EligibilityResponse, error)
	StartSession(context.Context, *StartSessionRequest) (*StartSessionResponse, error)
	CastVote(context.Context, *CastVoteRequest) (*CastVoteResponse, error)
	EndSession(context.Context, *EndSessionRequest) (*EndSessionResponse, error)
	GetLiveTally(context.Context, *GetTallyRequest) (*TallySnapshot, error)
	WatchTally(*WatchTallyRequest, grpc.ServerStreamingServer[TallySnapshot]) error
}

func RegisterVotingServiceServer(s grpc.ServiceRegistrar, srv VotingServiceServer) {
	s.RegisterService(&VotingService_ServiceDesc, srv)
}

// unaryHandler adapts one typed method to grpc.MethodDesc.
func unaryHandler[Req any, Resp any](fullMethod string, call func(VotingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(VotingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(VotingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchTallyHandler(srv any, stream grpc.ServerStream) error {
	m := new(WatchTallyRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(VotingServiceServer).WatchTally(m, &grpc.GenericServerStream[WatchTallyRequest, TallySnapshot]{ServerStream: stream})
}

var VotingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VotingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckEligibility",
			Handler:    unaryHandler(VotingService_CheckEligibility_FullMethodName, VotingServiceServer.CheckEligibility),
		},
		{
			MethodName: "StartSession",
			Handler:    unaryHandler(VotingService_StartSession_FullMethodName, VotingServiceServer.StartSession),
		},
		{
			MethodName: "CastVote",
			Handler:    unaryHandler(VotingService_CastVote_FullMethodName, VotingServiceServer.CastVote),
		},
		{
			MethodName: "EndSession",
			Handler:    unaryHandler(VotingService_EndSession_FullMethodName, VotingServiceServer.EndSession),
		},
		{
			MethodName: "GetLiveTally",
			Handler:    unaryHandler(VotingService_GetLiveTally_FullMethodName, VotingServiceServer.GetLiveTally),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchTally",
			Handler:       watchTallyHandler,
			ServerStreams: true,
		},
	},
	Metadata: "ballot/v1/voting",
}

// VotingServiceClient is the station and dashboard side of the contract.
type VotingServiceClient interface {
	CheckEligibility(ctx context.Context, in *CheckEligibilityRequest, opts ...grpc.CallOption) (*EligibilityResponse, error)
	StartSession(ctx context.Context, in *StartSessionRequest, opts ...grpc.CallOption) (*StartSessionResponse, error)
	CastVote(ctx context.Context, in *CastVoteRequest, opts ...grpc.CallOption) (*CastVoteResponse, error)
	EndSession(ctx context.Context, in *EndSessionRequest, opts ...grpc.CallOption) (*EndSessionResponse, error)
	GetLiveTally(ctx context.Context, in *GetTallyRequest, opts ...grpc.CallOption) (*TallySnapshot, error)
	WatchTally(ctx context.Context, in *WatchTallyRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[TallySnapshot], error)
}

type votingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewVotingServiceClient(cc grpc.ClientConnInterface) VotingServiceClient {
	return &votingServiceClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.StaticMethod(), grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Req any, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *votingServiceClient) CheckEligibility(ctx context.Context, in *CheckEligibilityRequest, opts ...grpc.CallOption) (*EligibilityResponse, error) {
	return invoke[CheckEligibilityRequest, EligibilityResponse](ctx, c.cc, VotingService_CheckEligibility_FullMethodName, in, opts)
}

func (c *votingServiceClient) StartSession(ctx context.Context, in *StartSessionRequest, opts ...grpc.CallOption) (*StartSessionResponse, error) {
	return invoke[StartSessionRequest, StartSessionResponse](ctx, c.cc, VotingService_StartSession_FullMethodName, in, opts)
}

func (c *votingServiceClient) CastVote(ctx context.Context, in *CastVoteRequest, opts ...grpc.CallOption) (*CastVoteResponse, error) {
	return invoke[CastVoteRequest, CastVoteResponse](ctx, c.cc, VotingService_CastVote_FullMethodName, in, opts)
}

func (c *votingServiceClient) EndSession(ctx context.Context, in *EndSessionRequest, opts ...grpc.CallOption) (*EndSessionResponse, error) {
	return invoke[EndSessionRequest, EndSessionResponse](ctx, c.cc, VotingService_EndSession_FullMethodName, in, opts)
}

func (c *votingServiceClient) GetLiveTally(ctx context.Context, in *GetTallyRequest, opts ...grpc.CallOption) (*TallySnapshot, error) {
	return invoke[GetTallyRequest, TallySnapshot](ctx, c.cc, VotingService_GetLiveTally_FullMethodName, in, opts)
}

func (c *votingServiceClient) WatchTally(ctx context.Context, in *WatchTallyRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[TallySnapshot], error) {
	stream, err := c.cc.NewStream(ctx, &VotingService_ServiceDesc.Streams[0], VotingService_WatchTally_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchTallyRequest, TallySnapshot]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
