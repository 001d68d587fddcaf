package ops

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/worldline-go/klient"
)

// registerHTTP wires the two network-reaching builtin ops, HttpGet and
// HttpPost, through worldline-go/klient the same way the http_request
// workflow node builds its client: retry disabled by default, a bounded
// per-call timeout, no implicit environment proxy surprises.
// Skills that use these ops must declare the "network" permission; that
// discipline is enforced by the static verifier, not here.
func registerHTTP(reg *lang.Registry) {
	reg.Register(lang.OpFunc{
		OpName: "HttpGet",
		Fn: func(ctx context.Context, inputs []lang.Value, params map[string]any) (lang.Value, error) {
			url := arg0String(inputs)
			if url == "" {
				return lang.Null(), fmt.Errorf("HttpGet: requires a url input")
			}
			return doHTTPRequest(ctx, http.MethodGet, url, "", params)
		},
	})

	reg.Register(lang.OpFunc{
		OpName: "HttpPost",
		Fn: func(ctx context.Context, inputs []lang.Value, params map[string]any) (lang.Value, error) {
			url := arg0String(inputs)
			if url == "" {
				return lang.Null(), fmt.Errorf("HttpPost: requires a url input")
			}
			body := ""
			if len(inputs) > 1 {
				body, _ = inputs[1].AsString()
			}
			return doHTTPRequest(ctx, http.MethodPost, url, body, params)
		},
	})
}

func doHTTPRequest(ctx context.Context, method, url, body string, params map[string]any) (lang.Value, error) {
	timeout := time.Duration(paramFloat(params, "timeout", 30)) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return lang.Null(), fmt.Errorf("%s: %w", method, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client, err := klient.New(
		klient.WithDisableBaseURLCheck(true),
		klient.WithDisableEnvValues(true),
		klient.WithDisableRetry(true),
	)
	if err != nil {
		return lang.Null(), fmt.Errorf("%s: build client: %w", method, err)
	}

	resp, err := client.HTTP.Do(req)
	if err != nil {
		return lang.Null(), fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return lang.Null(), fmt.Errorf("%s: read response: %w", method, err)
	}

	return lang.String(string(respBody)), nil
}
