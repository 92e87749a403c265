// Package schemas embeds the scmreader HTTP API description.
package schemas

import _ "embed"

// OpenAPISpec is the raw openapi.yaml, used for request validation.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
