package gemini

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSanitizeSchema_DropsUnknownKeys(t *testing.T) {
	schema := map[string]interface{}{
		"type":                 "object",
		"description":          "a config",
		"additionalProperties": false,
		"examples":             []interface{}{"x"},
		"default":              "y",
	}

	got := sanitizeSchema(schema)
	want := map[string]interface{}{
		"type":                 "object",
		"description":          "a config",
		"additionalProperties": false,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSanitizeSchema_RecursesIntoProperties(t *testing.T) {
	var schema map[string]interface{}
	raw := `{
		"type": "object",
		"properties": {
			"name": {"type": "string", "pattern": "^[a-z]+$"},
			"items": {"type": "array", "items": {"type": "number", "exclusiveMinimum": 0}}
		}
	}`
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		t.Fatal(err)
	}

	got := sanitizeSchema(schema)

	name := got["properties"].(map[string]interface{})["name"].(map[string]interface{})
	if _, ok := name["pattern"]; ok {
		t.Error("pattern should be stripped from nested schema")
	}
	if name["type"] != "string" {
		t.Errorf("name schema = %v", name)
	}

	// A property literally named "items" is a user-chosen name, not the
	// array keyword, so its inner schema still gets filtered.
	items := got["properties"].(map[string]interface{})["items"].(map[string]interface{})
	inner := items["items"].(map[string]interface{})
	if _, ok := inner["exclusiveMinimum"]; ok {
		t.Error("exclusiveMinimum should be stripped from array item schema")
	}
}

func TestSanitizeSchema_AnyOfAndDefs(t *testing.T) {
	var schema map[string]interface{}
	raw := `{
		"anyOf": [
			{"type": "string", "minLength": 1},
			{"$ref": "#/$defs/thing"}
		],
		"$defs": {
			"thing": {"type": "object", "unevaluatedProperties": false}
		}
	}`
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		t.Fatal(err)
	}

	got := sanitizeSchema(schema)

	first := got["anyOf"].([]interface{})[0].(map[string]interface{})
	if _, ok := first["minLength"]; ok {
		t.Error("minLength should be stripped inside anyOf")
	}
	second := got["anyOf"].([]interface{})[1].(map[string]interface{})
	if second["$ref"] != "#/$defs/thing" {
		t.Errorf("$ref = %v", second["$ref"])
	}

	thing := got["$defs"].(map[string]interface{})["thing"].(map[string]interface{})
	if _, ok := thing["unevaluatedProperties"]; ok {
		t.Error("unevaluatedProperties should be stripped inside $defs")
	}
	if thing["type"] != "object" {
		t.Errorf("thing = %v", thing)
	}
}

func TestSanitizeSchema_Nil(t *testing.T) {
	if sanitizeSchema(nil) != nil {
		t.Error("nil schema should stay nil")
	}
}
