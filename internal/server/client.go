package server

import (
	"context"

	"google.golang.org/grpc"
)

// JobsClient calls JobsService over conn using the JSON codec.
type JobsClient struct {
	cc grpc.ClientConnInterface
}

func NewJobsClient(cc grpc.ClientConnInterface) *JobsClient {
	return &JobsClient{cc: cc}
}

// DialOptions are the call defaults a JobsService client needs.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMessageBytes),
			grpc.MaxCallSendMsgSize(MaxMessageBytes),
		),
	}
}

func (c *JobsClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+JobsServiceName+"/"+method, in, out, opts...)
}

func (c *JobsClient) Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error) {
	out := new(SubmitResponse)
	if err := c.invoke(ctx, "Submit", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JobsClient) GetJob(ctx context.Context, in *GetJobRequest, opts ...grpc.CallOption) (*GetJobResponse, error) {
	out := new(GetJobResponse)
	if err := c.invoke(ctx, "GetJob", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JobsClient) ListJobs(ctx context.Context, in *ListJobsRequest, opts ...grpc.CallOption) (*ListJobsResponse, error) {
	out := new(ListJobsResponse)
	if err := c.invoke(ctx, "ListJobs", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JobsClient) DeleteJob(ctx context.Context, in *DeleteJobRequest, opts ...grpc.CallOption) (*DeleteJobResponse, error) {
	out := new(DeleteJobResponse)
	if err := c.invoke(ctx, "DeleteJob", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JobsClient) ListRecords(ctx context.Context, in *ListRecordsRequest, opts ...grpc.CallOption) (*ListRecordsResponse, error) {
	out := new(ListRecordsResponse)
	if err := c.invoke(ctx, "ListRecords", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JobsClient) ExportRecords(ctx context.Context, in *ExportRecordsRequest, opts ...grpc.CallOption) (*ExportRecordsResponse, error) {
	out := new(ExportRecordsResponse)
	if err := c.invoke(ctx, "ExportRecords", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
