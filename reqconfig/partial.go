package reqconfig

import (
	"github.com/s0up4200/reqflow/field"
)

// Partial is a sparse overlay on Config. Nil fields are left untouched.
type Partial struct {
	Request *RequestPartial
	Result  *ResultPartial
	Upload  *UploadPartial
}

// RequestPartial overlays RequestConfig
type RequestPartial struct {
	Origin      Resolver[string]
	Path        *string
	ContentType *string
	Header      Resolver[map[string]string]
	Data        Resolver[map[string]any]
	GetData     Resolver[map[string]any]
}

// ResultPartial overlays ResultConfig
type ResultPartial struct {
	SuccessCode any
	ErrorCode   any
	Code        *field.Descriptor
	Message     *field.Descriptor
	Data        *field.Descriptor
}

// UploadPartial overlays UploadConfig
type UploadPartial struct {
	API          *string
	RequestField *string
	ResultField  *field.Descriptor
}

// IsZero reports whether p carries no overrides
func (p Partial) IsZero() bool {
	return p.Request == nil && p.Result == nil && p.Upload == nil
}

// Set applies p onto target in place. Literal maps already present in target
// are merged key by key, recursing into nested maps; every other field is
// replaced wholesale.
func Set(target *Config, p Partial) {
	if r := p.Request; r != nil {
		if r.Origin != nil {
			target.Request.Origin = r.Origin
		}
		if r.Path != nil {
			target.Request.Path = *r.Path
		}
		if r.ContentType != nil {
			target.Request.ContentType = *r.ContentType
		}
		target.Request.Header = mergeResolver(target.Request.Header, r.Header)
		target.Request.Data = mergeResolver(target.Request.Data, r.Data)
		target.Request.GetData = mergeResolver(target.Request.GetData, r.GetData)
	}

	if r := p.Result; r != nil {
		if r.SuccessCode != nil {
			target.Result.SuccessCode = r.SuccessCode
		}
		if r.ErrorCode != nil {
			target.Result.ErrorCode = r.ErrorCode
		}
		if r.Code != nil {
			target.Result.Code = *r.Code
		}
		if r.Message != nil {
			target.Result.Message = *r.Message
		}
		if r.Data != nil {
			target.Result.Data = *r.Data
		}
	}

	if u := p.Upload; u != nil {
		if u.API != nil {
			target.Upload.API = *u.API
		}
		if u.RequestField != nil {
			target.Upload.RequestField = *u.RequestField
		}
		if u.ResultField != nil {
			target.Upload.ResultField = *u.ResultField
		}
	}
}

// Merge returns a deep copy of base with p applied. base is not modified.
func Merge(base Config, p Partial) Config {
	out := base.Clone()
	Set(&out, p)
	return out
}

// mergeResolver merges src into dst when both are literal maps, otherwise
// src replaces dst
func mergeResolver[V any](dst, src Resolver[map[string]V]) Resolver[map[string]V] {
	if src == nil {
		return dst
	}

	s, ok := src.(Static[map[string]V])
	if !ok {
		return src
	}
	d, ok := dst.(Static[map[string]V])
	if !ok || d.Value == nil {
		return cloneResolver(src)
	}

	for k, v := range s.Value {
		d.Value[k] = mergeValue(d.Value[k], v)
	}
	return d
}

func mergeValue[V any](existing, incoming V) V {
	dst, ok := any(existing).(map[string]any)
	if !ok || dst == nil {
		return cloneValue(incoming)
	}
	src, ok := any(incoming).(map[string]any)
	if !ok {
		return cloneValue(incoming)
	}
	for k, v := range src {
		dst[k] = mergeValue(dst[k], v)
	}
	return existing
}
