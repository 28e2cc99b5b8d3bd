package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Call sends one API request and waits for the matching response. Handlers
// on api.preSend see the request first and may veto it with
// StopPropagation. A non-nil out receives the decoded data field.
func (c *Client) Call(ctx context.Context, action string, params any, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if params == nil {
		params = map[string]any{}
	}

	req := &APIRequest{Action: action, Params: params, Echo: uuid.NewString()}
	if c.bus.Handle(ctx, "api.preSend", req) {
		return fmt.Errorf("%w: %s", ErrSendVetoed, action)
	}

	s := c.apiSession.Load()
	if s == nil {
		return ErrNotConnected
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	payload, err := sonic.Marshal(req)
	if err != nil {
		return fmt.Errorf("cqsocket: encode %s: %w", action, err)
	}

	respCh := make(chan *APIResponse, 1)
	c.pending.Store(req.Echo, respCh)
	defer c.pending.Delete(req.Echo)

	if err := s.write(payload); err != nil {
		return fmt.Errorf("cqsocket: send %s: %w", action, err)
	}

	timer := time.NewTimer(c.opts.SendTimeout)
	defer timer.Stop()

	var resp *APIResponse
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s after %s", ErrTimeout, action, c.opts.SendTimeout)
	case resp = <-respCh:
	}

	if resp.err != nil {
		return resp.err
	}

	c.bus.Handle(ctx, "api.response", &APIResponseEvent{Request: req, Response: resp})

	// retcode 1 means the request was accepted for async processing.
	if resp.RetCode > 1 {
		return &APIError{
			Action:  action,
			Status:  resp.Status,
			RetCode: resp.RetCode,
			Message: resp.Message,
			Wording: resp.Wording,
		}
	}

	if out != nil && len(resp.Data) > 0 && string(resp.Data) != "null" {
		if err := sonic.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("cqsocket: decode %s response: %w", action, err)
		}
	}
	return nil
}

func (c *Client) resolveResponse(payload []byte) {
	echo := gjson.GetBytes(payload, "echo")
	if !echo.Exists() {
		c.log().Debugf("api frame without echo dropped: %s", payload)
		return
	}

	chVal, ok := c.pending.LoadAndDelete(echo.String())
	if !ok {
		c.log().Debugf("no pending request for echo %s", echo.String())
		return
	}

	resp := &APIResponse{}
	if err := sonic.Unmarshal(payload, resp); err != nil {
		resp.err = fmt.Errorf("cqsocket: decode api response: %w", err)
	}

	ch := chVal.(chan *APIResponse)
	select {
	case ch <- resp:
	default:
	}
}

func (c *Client) failPending(err error) {
	c.pending.Range(func(key, value any) bool {
		ch := value.(chan *APIResponse)
		select {
		case ch <- &APIResponse{Status: "failed", err: err}:
		default:
		}
		c.pending.Delete(key)
		return true
	})
}
