package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model. Defaults to the instance name.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithIncludeHidden is an option builder that makes the Model emit hidden submeshes as well,
// for tools that need the full mesh regardless of visibility.
//
// Parameters:
//   - include: true to emit every submesh
//
// Returns:
//   - ModelBuilderOption: a function that applies the option to a model
func WithIncludeHidden(include bool) ModelBuilderOption {
	return func(m *model) {
		m.includeHidden = include
	}
}
