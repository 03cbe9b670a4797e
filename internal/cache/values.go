package cache

import (
	"fmt"
	"strconv"
	"strings"

	language "github.com/hanpama/graphcache/internal/language"
)

// operationVariables resolves the variable values in effect for an
// operation: provided values win, declaration defaults fill gaps, and a
// missing non-null variable is an error. There is no schema on the client,
// so no type coercion happens here; values are used for storage-key
// serialization and directive evaluation only.
func operationVariables(operation *language.OperationDefinition, variableValues map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(operation.VariableDefinitions))
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		val, ok := variableValues[name]
		if !ok {
			if v2, ok2 := variableValues[strings.TrimPrefix(name, "$")]; ok2 {
				val = v2
				ok = true
			}
		}
		if !ok {
			if varDef.DefaultValue != nil {
				resolved[name] = astValueToGo(varDef.DefaultValue)
			} else if varDef.Type.NonNull {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, varDef.Type.String())
			}
			continue
		}
		if val == nil && varDef.Type.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, varDef.Type.String())
		}
		resolved[name] = val
	}
	return resolved, nil
}

// argumentValues converts a field's argument list to Go values with
// variable substitution. The result feeds storage-key serialization, so
// reads and writes of the same invocation land on the same stored value.
func argumentValues(field *language.Field, vars map[string]any) map[string]any {
	if len(field.Arguments) == 0 {
		return nil
	}
	args := make(map[string]any, len(field.Arguments))
	for _, arg := range field.Arguments {
		args[arg.Name] = valueWithVars(arg.Value, vars)
	}
	return args
}

// valueWithVars converts an AST value to a Go value with variable substitution
func valueWithVars(value *language.Value, vars map[string]any) any {
	if value == nil {
		return nil
	}
	if value.Kind == language.Variable {
		name := value.Raw
		if v, ok := vars[name]; ok {
			return v
		}
		if v, ok := vars[strings.TrimPrefix(name, "$")]; ok {
			return v
		}
		return nil
	}
	return astValueToGoWithVars(value, vars)
}

// astValueToGo converts an AST value to a Go value
func astValueToGo(value *language.Value) any {
	return astValueToGoWithVars(value, nil)
}

func astValueToGoWithVars(value *language.Value, vars map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		return valueWithVars(value, vars)
	case language.IntValue:
		iv, _ := strconv.Atoi(value.Raw)
		return iv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.NullValue:
		return nil
	case language.EnumValue:
		return value.Raw
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGoWithVars(c.Value, vars)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any)
		for _, f := range value.Children {
			m[f.Name] = astValueToGoWithVars(f.Value, vars)
		}
		return m
	default:
		return nil
	}
}
