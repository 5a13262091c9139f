package demo

import "github.com/qri-io/jsonschema"

var noArgsSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {},
  "additionalProperties": false
}`)

var helloWorldSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {},
  "additionalProperties": false
}`)

var echoSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "text": { "type": "string", "description": "Text to echo back" }
  },
  "required": ["text"],
  "additionalProperties": false
}`)

var batchGreetingSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "names": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Names to greet"
    },
    "prefix": { "type": "string", "description": "Greeting word, defaults to Hello" },
    "include_numbers": { "type": "boolean", "description": "Number each greeting" },
    "as_json": { "type": "boolean", "description": "Return a JSON object instead of plain lines" }
  },
  "required": ["names"],
  "additionalProperties": false
}`)
