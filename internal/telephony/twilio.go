package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soyeahso/callbridge/internal/logging"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioCaller implements CallCreator on top of the Twilio REST API.
type TwilioCaller struct {
	create func(*api.CreateCallParams) (*api.ApiV2010Call, error)
	log    *logging.Logger
}

// TwilioOptions configures a TwilioCaller.
type TwilioOptions struct {
	AccountSID string
	AuthToken  string
	Timeout    time.Duration
}

// NewTwilioCaller builds a caller for the given account.
func NewTwilioCaller(opts TwilioOptions, log *logging.Logger) (*TwilioCaller, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, errors.New("twilio account SID and auth token are required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: opts.AccountSID,
		Password: opts.AuthToken,
	})
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &TwilioCaller{
		create: client.Api.CreateCall,
		log:    log.Sub("twilio"),
	}, nil
}

// CreateCall places the call. The SDK call is not context-aware, so it runs
// in its own goroutine and ctx only bounds how long we wait for it.
func (c *TwilioCaller) CreateCall(ctx context.Context, req CallRequest) (CallResult, error) {
	params := createCallParams(req)

	type result struct {
		call *api.ApiV2010Call
		err  error
	}
	ch := make(chan result, 1)

	start := time.Now()
	go func() {
		call, err := c.create(params)
		ch <- result{call: call, err: err}
	}()

	select {
	case <-ctx.Done():
		return CallResult{}, fmt.Errorf("create call: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return CallResult{}, fmt.Errorf("create call: %w", r.err)
		}
		if r.call == nil || r.call.Sid == nil || *r.call.Sid == "" {
			return CallResult{}, errors.New("create call: response has no call SID")
		}

		res := CallResult{CallSID: *r.call.Sid}
		if r.call.Status != nil {
			res.Status = *r.call.Status
		}

		c.log.Debug().
			Str("callSid", res.CallSID).
			Str("status", res.Status).
			Dur("duration", time.Since(start)).
			Msg("call created")

		return res, nil
	}
}

func createCallParams(req CallRequest) *api.CreateCallParams {
	params := &api.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetUrl(req.CallControlURL)
	params.SetMethod(http.MethodPost)
	if req.StatusCallbackURL != "" {
		params.SetStatusCallback(req.StatusCallbackURL)
		params.SetStatusCallbackMethod(http.MethodPost)
		if len(req.Events) > 0 {
			params.SetStatusCallbackEvent(req.Events)
		}
	}
	return params
}
