package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// configSchema mirrors Config. Definitions are closed, so unknown keys fail.
const configSchema = `
#Duration: =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Config: {
	samples_file?: string & !=""
	errors_file?:  string & !=""
	output_dir?:   string
	events_file?:  string
	metrics_file?: string
	go_binary?:    string & !=""
	run?:          string
	timeout?:      #Duration
	no_cache?:     bool
	test_flags?: [...string]
	summary?:    bool
	progress?:   bool
	log_level?:  "debug" | "info" | "warn" | "error" | "DEBUG" | "INFO" | "WARN" | "ERROR"
	log_format?: "text" | "json"
}
`

// ValidateWithCue validates YAML config data against the embedded CUE schema.
func ValidateWithCue(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(configSchema).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("cannot compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("cannot build YAML config: %w", err)
	}

	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
