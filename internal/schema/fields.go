package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sokinpui/changegate/model"
)

// fields is the typed view of one change's operation-specific keys. Pointer
// fields distinguish "absent" from "empty": an empty content string is a
// legal create, a missing one is not.
type fields struct {
	Operation model.Operation `json:"-"`

	Content      *string           `json:"content" validate:"required_if=Operation create,required_if=Operation replace,required_if=Operation upsert_function,required_if=Operation upsert_css_selector,required_if=Operation insert_after_anchor,required_if=Operation insert_before_anchor,required_if=Operation append_if_missing"`
	Edits        *[]model.EditPair `json:"edits" validate:"required_if=Operation edit"`
	FunctionName *string           `json:"function_name" validate:"required_if=Operation upsert_function"`
	Selector     *string           `json:"selector" validate:"required_if=Operation upsert_css_selector"`
	Anchor       *string           `json:"anchor" validate:"required_if=Operation insert_after_anchor,required_if=Operation insert_before_anchor"`
	Signature    *string           `json:"signature" validate:"required_if=Operation append_if_missing"`
	UseRegex     bool              `json:"use_regex"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// decodeFields reads the operation-specific keys of a normalized change.
func decodeFields(change map[string]any, op model.Operation) (fields, error) {
	f := fields{Operation: op}

	if raw, ok := change["edits"]; ok {
		if _, isList := raw.([]any); !isList {
			return f, errors.New("'edits' must be a list")
		}
	}

	data, err := json.Marshal(change)
	if err != nil {
		return f, fmt.Errorf("change is not serializable: %w", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return f, fmt.Errorf("'%s' must be %s", typeErr.Field, kindName(typeErr.Type.Kind()))
		}
		return f, err
	}
	f.Operation = op
	return f, nil
}

func kindName(k reflect.Kind) string {
	switch k {
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.Slice:
		return "a list"
	case reflect.Bool:
		return "a boolean"
	default:
		return "a " + k.String()
	}
}

// requiredFieldErrors turns validator failures into one message per
// missing field, in struct order.
func requiredFieldErrors(f fields) []string {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("Missing '%s' for %s operation", fe.Field(), f.Operation))
	}
	return msgs
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toChange builds the typed variant for a validated change.
func toChange(path string, f fields) model.Change {
	switch f.Operation {
	case model.OpCreate:
		return model.Create{Path: path, Content: deref(f.Content)}
	case model.OpReplace:
		return model.Replace{Path: path, Content: deref(f.Content)}
	case model.OpDelete:
		return model.Delete{Path: path}
	case model.OpEdit:
		var edits []model.EditPair
		if f.Edits != nil {
			edits = *f.Edits
		}
		return model.Edit{Path: path, Edits: edits}
	case model.OpUpsertFunction:
		return model.UpsertFunction{Path: path, FunctionName: deref(f.FunctionName), Content: deref(f.Content)}
	case model.OpUpsertCSSSelector:
		return model.UpsertCSSSelector{Path: path, Selector: deref(f.Selector), Content: deref(f.Content)}
	case model.OpInsertAfterAnchor, model.OpInsertBeforeAnchor:
		return model.InsertAtAnchor{
			Path:     path,
			Anchor:   deref(f.Anchor),
			Content:  deref(f.Content),
			UseRegex: f.UseRegex,
			Before:   f.Operation == model.OpInsertBeforeAnchor,
		}
	case model.OpAppendIfMissing:
		return model.AppendIfMissing{Path: path, Content: deref(f.Content), Signature: deref(f.Signature)}
	}
	return nil
}
