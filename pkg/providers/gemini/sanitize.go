package gemini

// schemaKeys is the set of JSON-Schema fields the Gemini API accepts in
// function declarations. Anything outside the set is dropped before the
// schema is sent, since unknown fields fail the whole request.
var schemaKeys = map[string]bool{
	"type":                 true,
	"properties":           true,
	"required":             true,
	"description":          true,
	"enum":                 true,
	"items":                true,
	"format":               true,
	"nullable":             true,
	"title":                true,
	"anyOf":                true,
	"$ref":                 true,
	"$defs":                true,
	"$id":                  true,
	"$anchor":              true,
	"minimum":              true,
	"maximum":              true,
	"minItems":             true,
	"maxItems":             true,
	"prefixItems":          true,
	"additionalProperties": true,
	"propertyOrdering":     true,
}

// sanitizeSchema walks a tool input schema and removes unsupported
// fields at every nesting level. Children of "properties" and "$defs"
// are schema maps themselves and are recursed into without key
// filtering, since their keys are user-chosen names.
func sanitizeSchema(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}
	out := make(map[string]interface{}, len(schema))
	for key, value := range schema {
		if !schemaKeys[key] {
			continue
		}
		switch key {
		case "properties", "$defs":
			out[key] = sanitizeNamedSchemas(value)
		default:
			out[key] = sanitizeValue(value)
		}
	}
	return out
}

// sanitizeNamedSchemas handles maps whose keys are names and whose
// values are schemas.
func sanitizeNamedSchemas(value interface{}) interface{} {
	m, ok := value.(map[string]interface{})
	if !ok {
		return value
	}
	out := make(map[string]interface{}, len(m))
	for name, sub := range m {
		if subSchema, ok := sub.(map[string]interface{}); ok {
			out[name] = sanitizeSchema(subSchema)
		} else {
			out[name] = sub
		}
	}
	return out
}

// sanitizeValue recurses into nested schemas and schema arrays.
func sanitizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return sanitizeSchema(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return value
	}
}
