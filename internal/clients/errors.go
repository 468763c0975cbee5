package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrEmptyCart  = errors.New("cart is empty")
	ErrContract   = errors.New("unexpected response from store api")
	ErrValidation = errors.New("validation failed")

	ErrOrderSubmission   = errors.New("order submission failed")
	ErrOrderFetch        = errors.New("order fetch failed")
	ErrOrderUpdate       = errors.New("order update failed")
	ErrPaymentSubmission = errors.New("payment submission failed")
	ErrJobFetch          = errors.New("job fetch failed")
	ErrCatalogFetch      = errors.New("catalog fetch failed")
)

// Server error codes the checkout flow reacts to.
const (
	CodeAlreadyPaid = "already-paid"
	CodeNotFound    = "not-found"
)

// ValidationError lists the fields that were empty after trimming. It is
// returned before any request is sent.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// APIError is a non-2xx answer from the store API.
type APIError struct {
	StatusCode int
	Field      string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "store api returned %d", e.StatusCode)
	if e.Field != "" {
		fmt.Fprintf(&b, " on %s", e.Field)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

// RequestError tags a failed gateway call with its kind (ErrOrderFetch and
// friends) while keeping the cause reachable through errors.Is/As.
type RequestError struct {
	Kind error
	Op   string
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *RequestError) Unwrap() []error { return []error{e.Kind, e.Err} }

func wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &RequestError{Kind: kind, Op: op, Err: err}
}

// IsAPICode reports whether err carries a store API error with the given code.
func IsAPICode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type errorBody struct {
	Errors map[string]struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"errors"`
	Error string `json:"error"`
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}

	if len(body.Errors) > 0 {
		fields := make([]string, 0, len(body.Errors))
		for f := range body.Errors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		apiErr.Field = fields[0]
		apiErr.Code = body.Errors[fields[0]].Code
		apiErr.Message = body.Errors[fields[0]].Name
		return apiErr
	}
	apiErr.Message = body.Error
	return apiErr
}
