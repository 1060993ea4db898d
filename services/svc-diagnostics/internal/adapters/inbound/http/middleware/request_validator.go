package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// RequestValidator rejects requests that do not match the OpenAPI document. Security
// requirements are skipped here since the Authenticator enforces them.
func RequestValidator(swagger *openapi3.T) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAPI router: %w", err)
	}

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)

				return
			}

			if status, code, err := validateRequest(r, router, options); err != nil {
				writeError(w, status, code, err.Error())

				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func validateRequest(r *http.Request, router routers.Router, options *openapi3filter.Options) (int, string, error) {
	route, pathParams, err := router.FindRoute(r)
	if err != nil {
		return http.StatusNotFound, CodeNotFound, errors.New("route not found")
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
		Options:    options,
	}

	err = openapi3filter.ValidateRequest(r.Context(), input)
	if err == nil {
		return http.StatusOK, "", nil
	}

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, CodeValidationError, errors.New(describeRequestError(reqErr))
	}

	return http.StatusInternalServerError, CodeInternalError, errors.New("request validation failed")
}

func describeRequestError(e *openapi3filter.RequestError) string {
	var schemaErr *openapi3.SchemaError
	hasSchemaErr := errors.As(e.Err, &schemaErr)

	switch {
	case e.Parameter != nil && hasSchemaErr:
		return fmt.Sprintf("invalid %s parameter %q: %s", e.Parameter.In, e.Parameter.Name, schemaErr.Reason)
	case e.Parameter != nil:
		return fmt.Sprintf("invalid %s parameter %q", e.Parameter.In, e.Parameter.Name)
	case e.RequestBody != nil && hasSchemaErr:
		return "invalid request body: " + schemaErr.Reason
	case e.RequestBody != nil:
		return "invalid request body"
	default:
		return e.Error()
	}
}
