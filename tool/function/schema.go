//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"

	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

var reflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: false,
}

// generateSchema reflects t into the tool schema subset understood by models.
// Struct fields without omitempty are required; descriptions come from
// `jsonschema:"description=..."` tags.
func generateSchema(t reflect.Type) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	b, err := json.Marshal(reflector.ReflectFromType(t))
	if err != nil {
		return &tool.Schema{Type: "object"}
	}
	var s tool.Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return &tool.Schema{Type: "object"}
	}
	if s.Type == "" && t.Kind() == reflect.Struct {
		s.Type = "object"
	}
	return &s
}
