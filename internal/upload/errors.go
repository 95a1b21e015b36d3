package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// ErrAbandoned marks an upload cut short by shutdown. It never deletes.
var ErrAbandoned = errors.New("upload abandoned")

// LocalReadError: the segment vanished or could not be read. Not retried;
// the file is treated as already handled.
type LocalReadError struct {
	Path string
	Err  error
}

func (e *LocalReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }
func (e *LocalReadError) Unwrap() error { return e.Err }

// TransientUploadError is returned once the bounded retries for one cycle
// are used up. The next scan picks the file up again.
type TransientUploadError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *TransientUploadError) Error() string {
	return fmt.Sprintf("upload %s failed after %d attempt(s): %v", e.Key, e.Attempts, e.Err)
}
func (e *TransientUploadError) Unwrap() error { return e.Err }

// PermanentConfigError means no upload can succeed until an operator fixes
// credentials, bucket or endpoint.
type PermanentConfigError struct {
	Key  string
	Code string
	Err  error
}

func (e *PermanentConfigError) Error() string {
	return fmt.Sprintf("upload %s rejected (%s): %v", e.Key, e.Code, e.Err)
}
func (e *PermanentConfigError) Unwrap() error { return e.Err }

// PartialWriteError is an ambiguous outcome: the put timed out mid-transfer
// or the stored object does not match what was sent. Retried, never deleted.
type PartialWriteError struct {
	Key string
	Err error
}

func (e *PartialWriteError) Error() string { return fmt.Sprintf("partial write %s: %v", e.Key, e.Err) }
func (e *PartialWriteError) Unwrap() error { return e.Err }

// permanentCodes are S3 error codes caused by configuration, not by the
// network or the object.
var permanentCodes = map[string]struct{}{
	"InvalidAccessKeyId":           {},
	"SignatureDoesNotMatch":        {},
	"AccessDenied":                 {},
	"NoSuchBucket":                 {},
	"InvalidBucketName":            {},
	"AuthorizationHeaderMalformed": {},
	"InvalidToken":                 {},
	"ExpiredToken":                 {},
	"AccountProblem":               {},
}

// permanentCode reports the code that makes err a configuration failure.
func permanentCode(err error) (string, bool) {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		if _, ok := permanentCodes[ae.ErrorCode()]; ok {
			return ae.ErrorCode(), true
		}
	}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		switch re.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return http.StatusText(re.HTTPStatusCode()), true
		}
	}
	return "", false
}

// classify turns a raw store error from one attempt into the taxonomy.
// parent is the caller's context; attempt deadlines are judged against it.
func classify(parent context.Context, key string, err error) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &PartialWriteError{Key: key, Err: err}
	}
	if code, ok := permanentCode(err); ok {
		return &PermanentConfigError{Key: key, Code: code, Err: err}
	}
	return err
}

// IsPermanent reports whether err should halt all uploads.
func IsPermanent(err error) bool {
	var pe *PermanentConfigError
	return errors.As(err, &pe)
}

// IsLocalRead reports whether err means the local file is already gone.
func IsLocalRead(err error) bool {
	var le *LocalReadError
	return errors.As(err, &le)
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, ErrAbandoned):
		return false
	case IsPermanent(err), IsLocalRead(err):
		return false
	}
	return true
}
