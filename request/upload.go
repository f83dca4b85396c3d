package request

import (
	"context"
	"net/http"

	"github.com/s0up4200/reqflow/reqconfig"
	"github.com/s0up4200/reqflow/transport"
)

// UploadTarget resolves where a file transfer goes under cfg: the upload API
// joined through the URL builder, and the configured request headers.
func UploadTarget(ctx context.Context, cfg reqconfig.Config) (string, map[string]string, *reqconfig.Call, error) {
	call := &reqconfig.Call{URL: cfg.Upload.API, Method: http.MethodPost}

	url, err := BuildURL(ctx, cfg.Upload.API, nil, cfg.Request, call)
	if err != nil {
		return "", nil, call, newError(kindMalformedURL, cfg.Result.ErrorCode, ErrMalformedURL.Message, err)
	}
	call.URL = url

	header, err := reqconfig.Resolve(ctx, cfg.Request.Header, call)
	if err != nil {
		return "", nil, call, configError(cfg, "header", err)
	}
	call.Header = header
	return url, header, call, nil
}

// DecodeUpload settles a finished file transfer: transport failures are
// classified like ordinary calls and responses are decoded with the upload
// result field. ctx is the batch context and callCtx the transfer's own.
func DecodeUpload(ctx, callCtx context.Context, cfg reqconfig.Config, resp *transport.Response, err error, call *reqconfig.Call) (any, error) {
	if err != nil {
		return nil, transportFailure(ctx, callCtx, false, cfg.Result, call, err)
	}
	return DecodeResult(ctx, cfg.Result, cfg.Upload.ResultField, resp, call)
}
