package server

import (
	"context"

	"google.golang.org/grpc"
)

const JobsServiceName = "parivyaya.v1.JobsService"

// JobsServiceServer is the server API for JobsService.
type JobsServiceServer interface {
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	GetJob(context.Context, *GetJobRequest) (*GetJobResponse, error)
	ListJobs(context.Context, *ListJobsRequest) (*ListJobsResponse, error)
	DeleteJob(context.Context, *DeleteJobRequest) (*DeleteJobResponse, error)
	ListRecords(context.Context, *ListRecordsRequest) (*ListRecordsResponse, error)
	ExportRecords(context.Context, *ExportRecordsRequest) (*ExportRecordsResponse, error)
}

func RegisterJobsServiceServer(s grpc.ServiceRegistrar, srv JobsServiceServer) {
	s.RegisterService(&JobsServiceDesc, srv)
}

// unary builds a method handler the way generated code does, for any request/response pair.
func unary[Req any, Resp any](method string, call func(JobsServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(JobsServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + JobsServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(JobsServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var JobsServiceDesc = grpc.ServiceDesc{
	ServiceName: JobsServiceName,
	HandlerType: (*JobsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Submit", JobsServiceServer.Submit),
		unary("GetJob", JobsServiceServer.GetJob),
		unary("ListJobs", JobsServiceServer.ListJobs),
		unary("DeleteJob", JobsServiceServer.DeleteJob),
		unary("ListRecords", JobsServiceServer.ListRecords),
		unary("ExportRecords", JobsServiceServer.ExportRecords),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "parivyaya/v1/jobs.json",
}
