package schema

import _ "embed"

// ProcessesV1Schema contains the JSON schema for process configuration files.
//
//go:embed processes.v1.json
var ProcessesV1Schema []byte
