package request

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/s0up4200/reqflow/field"
	"github.com/s0up4200/reqflow/reqconfig"
	"github.com/s0up4200/reqflow/transport"
)

// DecodeResult applies the declarative result contract to resp: code and
// message are extracted from the body, and when code loosely equals the
// success code the data descriptor's value is returned. Descriptors see the
// body as their value and (resp, call) as extra arguments.
func DecodeResult(ctx context.Context, cfg reqconfig.ResultConfig, data field.Descriptor, resp *transport.Response, call *reqconfig.Call) (any, error) {
	code, message, err := extractStatus(ctx, cfg, resp, call)
	if err != nil {
		return nil, badFormat(cfg, err)
	}

	if !LooseEqual(code, cfg.SuccessCode) {
		return nil, &Error{Code: code, Message: message}
	}

	value, err := field.Resolve(ctx, data, resp.Data, resp, call)
	if err != nil {
		return nil, badFormat(cfg, err)
	}
	return value, nil
}

// decodeFailure turns a response attached to a transport failure into a
// business error. A missing code falls back to the HTTP status.
func decodeFailure(ctx context.Context, cfg reqconfig.ResultConfig, resp *transport.Response, call *reqconfig.Call) (*Error, bool) {
	code, message, err := extractStatus(ctx, cfg, resp, call)
	if err != nil {
		return nil, false
	}
	if code == nil {
		code = resp.StatusCode
	}
	return &Error{Code: code, Message: message}, true
}

func extractStatus(ctx context.Context, cfg reqconfig.ResultConfig, resp *transport.Response, call *reqconfig.Call) (any, string, error) {
	if resp == nil {
		return nil, "", fmt.Errorf("empty response")
	}

	code, err := field.Resolve(ctx, cfg.Code, resp.Data, resp, call)
	if err != nil {
		return nil, "", err
	}
	msg, err := field.Resolve(ctx, cfg.Message, resp.Data, resp, call)
	if err != nil {
		return nil, "", err
	}

	var message string
	if msg != nil {
		message = fmt.Sprint(msg)
	}
	return code, message, nil
}

func badFormat(cfg reqconfig.ResultConfig, cause error) *Error {
	return newError(kindBadFormat, cfg.ErrorCode, ErrBadFormat.Message, cause)
}

// LooseEqual compares codes the way a loosely typed API expects: numbers,
// numeric strings and booleans compare by numeric value, anything else by
// its printed form.
func LooseEqual(a, b any) bool {
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
