// Package api embeds the portal's OpenAPI document.
package api

import _ "embed"

// OpenAPISpec is the OpenAPI 3 document describing the HTTP surface.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
