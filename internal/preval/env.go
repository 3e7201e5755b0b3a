package preval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	starlarkjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// hostVersion is the version string the host stub reports.
const hostVersion = "0.0.0-preval"

// httpClient is shared by every evaluation in the process. The transport
// settings follow the pooled client the rest of the project uses.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// predeclared builds the environment every module in a session compiles
// against: the preval builtin, the JSON module, an http capability for the
// user computation's own network I/O, and the mocked host binding.
func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"preval": starlark.NewBuiltin("preval", prevalBuiltin),
		"json":   starlarkjson.Module,
		"http":   httpModule(),
		"host":   hostModule(),
	}
}

// hostModule is a compatibility shim, not a host-framework reimplementation.
// It satisfies only the surface compiled modules are known to probe: the
// server-context marker that presets branch on, an environment accessor, and
// a version string. Anything beyond that is intentionally absent.
func hostModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "host",
		Members: starlark.StringDict{
			"is_server": starlark.True,
			"version":   starlark.String(hostVersion),
			"env":       starlark.NewBuiltin("host.env", hostEnv),
		},
	}
}

func hostEnv(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, fallback string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &fallback); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return starlark.String(v), nil
	}
	return starlark.String(fallback), nil
}

// httpModule exposes the sanctioned channel for network I/O performed by the
// user-supplied computation. The core itself never initiates requests.
func httpModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "http",
		Members: starlark.StringDict{
			"get": starlark.NewBuiltin("http.get", httpGet),
		},
	}
}

func httpGet(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var url string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url); err != nil {
		return nil, err
	}

	ctx := context.Background()
	if threadCtx, ok := thread.Local("ctx").(context.Context); ok {
		ctx = threadCtx
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http.get: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http.get: reading response body: %w", err)
	}

	return starlarkstruct.FromStringDict(starlark.String("response"), starlark.StringDict{
		"status": starlark.MakeInt(resp.StatusCode),
		"body":   starlark.String(body),
	}), nil
}
