package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit queues jobs atomically.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	return call[SubmitResponse](c, "Submit", req)
}

// Cancel stops a job by id or unique prefix.
func (c *Client) Cancel(req CancelRequest) (*CancelResponse, error) {
	return call[CancelResponse](c, "Cancel", req)
}

// Get fetches one job.
func (c *Client) Get(id string) (*GetResponse, error) {
	return call[GetResponse](c, "Get", GetRequest{ID: id})
}

// List returns live jobs.
func (c *Client) List(req ListRequest) (*ListResponse, error) {
	return call[ListResponse](c, "List", req)
}

// Stats returns counts by status.
func (c *Client) Stats() (*StatsResponse, error) {
	return call[StatsResponse](c, "Stats", StatsRequest{})
}

// ClearCompleted removes terminal jobs from the live set.
func (c *Client) ClearCompleted() (*ClearCompletedResponse, error) {
	return call[ClearCompletedResponse](c, "ClearCompleted", ClearCompletedRequest{})
}

// StartWorkers starts the worker pool.
func (c *Client) StartWorkers(count int) (*WorkerStatusResponse, error) {
	return call[WorkerStatusResponse](c, "StartWorkers", StartWorkersRequest{Count: count})
}

// StopWorkers stops or drains the worker pool.
func (c *Client) StopWorkers(req StopWorkersRequest) (*WorkerStatusResponse, error) {
	return call[WorkerStatusResponse](c, "StopWorkers", req)
}

// WorkerStatus reports pool state.
func (c *Client) WorkerStatus() (*WorkerStatusResponse, error) {
	return call[WorkerStatusResponse](c, "WorkerStatus", WorkerStatusRequest{})
}

// ResizeWorkers sets the default pool size.
func (c *Client) ResizeWorkers(count int) (*WorkerStatusResponse, error) {
	return call[WorkerStatusResponse](c, "ResizeWorkers", ResizeWorkersRequest{Count: count})
}

// Presets lists the preset catalog.
func (c *Client) Presets() (*PresetsResponse, error) {
	return call[PresetsResponse](c, "Presets", PresetsRequest{})
}

// History queries archived jobs.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", req)
}

// TestNotification sends a test notification through the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}

// PruneHistory deletes old archive entries.
func (c *Client) PruneHistory(olderThan time.Duration) (*PruneHistoryResponse, error) {
	return call[PruneHistoryResponse](c, "PruneHistory", PruneHistoryRequest{OlderThanSeconds: int64(olderThan / time.Second)})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Events returns recent events after a sequence number.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	return call[EventsResponse](c, "Events", req)
}
