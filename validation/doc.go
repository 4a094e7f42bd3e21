// Package validation collects configuration problems and reports them as a
// single INVALID_INPUT error.
//
// Validate checks `validate` struct tags with go-playground/validator and
// names fields by their mapstructure keys (run.max_parallel, tasks[0].name).
// Validator gathers checks that tags cannot express:
//
//	v := validation.New()
//	v.Required("path.data", cfg.Path.Data).
//		Regexp("records.id_pattern", cfg.Records.IDPattern).
//		Known("tasks[0].modalities", "modality", "EEG", ok)
//	if err := v.Validate(); err != nil {
//		return err
//	}
package validation
