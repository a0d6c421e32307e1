package storage

import (
	"errors"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/minio/minio-go/v7"
)

// BackendError is a storage failure reduced to the parts worth showing a client.
type BackendError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return e.Code + ": " + e.Message
	case e.Code != "":
		return e.Code
	case e.Message != "":
		return e.Message
	}
	return e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// mapError normalises SDK errors from either backend into a BackendError.
// Errors that carry no service information are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		be := &BackendError{
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
			Err:     err,
		}
		var respErr *smithyhttp.ResponseError
		if errors.As(err, &respErr) {
			be.StatusCode = respErr.HTTPStatusCode()
		}
		return be
	}

	if resp := minio.ToErrorResponse(err); resp.Code != "" {
		return &BackendError{
			Code:       resp.Code,
			Message:    resp.Message,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}

	return err
}
