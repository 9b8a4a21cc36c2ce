package schema

import _ "embed"

// OpenAPI holds the embedded OpenAPI (Swagger) YAML for the lockup & vesting engine API.
//go:embed openapi.yaml
var OpenAPI []byte
