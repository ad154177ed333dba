// Package validation checks configuration and taskfile input.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Both report an AppError with
// code INVALID_INPUT whose "fields" detail lists every problem found.
//
// # Struct Tag Validation
//
//	type Serve struct {
//	    Port int `yaml:"port" validate:"gte=0,lte=65535"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("tasks[0].name", name).Glob("tasks[0].src", pattern)
//	err := v.Err()
//
// Field names come from yaml tags, then mapstructure tags, then the snake_case
// Go field name.
package validation
