// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the pagestream configuration. Values are layered as
// defaults, then a strict YAML file, then PAGESTREAM_* environment variables,
// and the result is validated before use.
package config
