package apiclient

import (
	"errors"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"codeberg.org/snonux/sahachari/internal/fallback"
)

// WrapOpenAI turns a go-openai error into a TierError.
func WrapOpenAI(provider string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &fallback.TierError{
			Kind:       StatusKind(apiErr.HTTPStatusCode, apiErr.Message),
			Provider:   provider,
			StatusCode: apiErr.HTTPStatusCode,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &fallback.TierError{
			Kind:       StatusKind(reqErr.HTTPStatusCode, string(reqErr.Body)),
			Provider:   provider,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}
	return wrapTransport(provider, err)
}

// WrapGenAI turns a genai error into a TierError.
func WrapGenAI(provider string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &fallback.TierError{
			Kind:       StatusKind(apiErr.Code, apiErr.Status+" "+apiErr.Message),
			Provider:   provider,
			StatusCode: apiErr.Code,
			Err:        err,
		}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &fallback.TierError{
			Kind:       StatusKind(apiErrPtr.Code, apiErrPtr.Status+" "+apiErrPtr.Message),
			Provider:   provider,
			StatusCode: apiErrPtr.Code,
			Err:        err,
		}
	}
	return wrapTransport(provider, err)
}

func wrapTransport(provider string, err error) error {
	kind := fallback.Classify(err)
	if kind == fallback.KindOther {
		kind = fallback.KindNetwork
	}
	return &fallback.TierError{Kind: kind, Provider: provider, Err: err}
}
