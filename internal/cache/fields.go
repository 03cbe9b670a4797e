package cache

import (
	language "github.com/hanpama/graphcache/internal/language"
)

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{
		fields: make([]collectedField, 0),
		index:  make(map[string]int),
	}
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
	} else {
		cfm.index[responseName] = len(cfm.fields)
		cfm.fields = append(cfm.fields, collectedField{
			ResponseName: responseName,
			Fields:       []*language.Field{field},
		})
	}
}

func (cfm *collectedFieldMap) orderedFields() []collectedField {
	return cfm.fields
}

// collectFields flattens a selection set into response-name field groups,
// expanding fragment spreads and inline fragments from the document and
// applying @skip/@include. typeName is the concrete type of the object the
// selection applies to, as far as it is known; reader and writer have no
// schema, so type conditions match by name only.
func collectFields(doc *language.QueryDocument, selectionSet language.SelectionSet, typeName string, vars map[string]any) *collectedFieldMap {
	groupedFields := newCollectedFieldMap()
	visitedFragments := make(map[string]bool)
	collectFieldsImpl(doc, selectionSet, typeName, vars, groupedFields, visitedFragments)
	return groupedFields
}

func collectFieldsImpl(doc *language.QueryDocument, selectionSet language.SelectionSet, typeName string, vars map[string]any, groupedFields *collectedFieldMap, visitedFragments map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !shouldIncludeNode(sel.Directives, vars) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			groupedFields.add(responseName, sel)

		case *language.InlineFragment:
			if !shouldIncludeNode(sel.Directives, vars) {
				continue
			}
			if !typeConditionMatches(sel.TypeCondition, typeName) {
				continue
			}
			collectFieldsImpl(doc, sel.SelectionSet, typeName, vars, groupedFields, visitedFragments)

		case *language.FragmentSpread:
			if !shouldIncludeNode(sel.Directives, vars) {
				continue
			}
			if visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true

			fragmentDef := doc.Fragments.ForName(sel.Name)
			if fragmentDef == nil {
				continue
			}
			if !typeConditionMatches(fragmentDef.TypeCondition, typeName) {
				continue
			}
			if !shouldIncludeNode(fragmentDef.Directives, vars) {
				continue
			}
			collectFieldsImpl(doc, fragmentDef.SelectionSet, typeName, vars, groupedFields, visitedFragments)
		}
	}
}

// typeConditionMatches applies a fragment's type condition without schema
// knowledge: an exact name match passes, and an unknown concrete type is
// let through rather than silently dropping fields.
// TODO: consult caller-supplied possible-type data to match interface and
// union conditions exactly.
func typeConditionMatches(condition, typeName string) bool {
	if condition == "" || typeName == "" {
		return true
	}
	return condition == typeName
}

// shouldIncludeNode checks if a node should be included based on directives
func shouldIncludeNode(directives language.DirectiveList, vars map[string]any) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := directiveArgumentValue(skip, "if", vars).(bool); ok && v {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := directiveArgumentValue(include, "if", vars).(bool); ok && !v {
			return false
		}
	}
	return true
}

func directiveArgumentValue(directive *language.Directive, argName string, vars map[string]any) any {
	for _, arg := range directive.Arguments {
		if arg.Name == argName {
			return valueWithVars(arg.Value, vars)
		}
	}
	return nil
}

// mergeSelectionSets merges selection sets from multiple fields collected
// under one response name.
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	if len(fields) == 1 {
		return fields[0].SelectionSet
	}
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// getOperation retrieves the operation from the document
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" && len(document.Operations) == 1 {
		return document.Operations[0]
	}
	for _, op := range document.Operations {
		if op.Name == operationName {
			return op
		}
	}
	return nil
}
