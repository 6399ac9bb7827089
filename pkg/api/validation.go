package api

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

var schemaCache sync.Map // reflect.Type -> *gojsonschema.Schema

// GenerateSchema reflects the JSON Schema of a request body.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""
	return schema
}

func compiledSchema[T any]() (*gojsonschema.Schema, error) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*gojsonschema.Schema), nil
	}

	raw, err := json.Marshal(GenerateSchema[T]())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request schema")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile request schema")
	}
	schemaCache.Store(key, schema)
	return schema, nil
}

// requestError is a request body that failed decoding or validation.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

// decodeBody reads a JSON body of at most maxBytes, validates it against the
// schema reflected from T and decodes it into v.
func decodeBody[T any](r *http.Request, maxBytes int64, v *T) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return &requestError{msg: "failed to read request body"}
	}
	if int64(len(body)) > maxBytes {
		return &requestError{msg: "request body is too large"}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return &requestError{msg: "request body is required"}
	}

	schema, err := compiledSchema[T]()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &requestError{msg: "request body is not valid JSON"}
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			issues = append(issues, issue.String())
		}
		return &requestError{msg: strings.Join(issues, "; ")}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &requestError{msg: "request body is not valid JSON: " + err.Error()}
	}
	return nil
}
