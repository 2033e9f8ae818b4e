package validator

import "reflect"

// Binding adapts a Validator to gin's binding.StructValidator so that
// ShouldBind* validates `validate` tags and returns translated errors.
type Binding struct {
	validator *Validator
	lang      string
}

// NewBinding returns a Binding backed by the global validator.
func NewBinding(lang string) *Binding {
	return &Binding{validator: Global(), lang: lang}
}

// ValidateStruct validates obj when it is a struct or a pointer to one.
func (b *Binding) ValidateStruct(obj interface{}) error {
	if obj == nil {
		return nil
	}
	t := reflect.TypeOf(obj)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if verrs := b.validator.ValidateWithLang(obj, b.lang); verrs.HasErrors() {
		return verrs
	}
	return nil
}

// Engine returns the underlying validator.
func (b *Binding) Engine() interface{} {
	return b.validator
}
