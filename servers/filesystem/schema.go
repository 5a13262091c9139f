package filesystem

import "github.com/qri-io/jsonschema"

var pathOnlySchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Path relative to the root directory" }
  },
  "required": ["path"],
  "additionalProperties": false
}`)

var readMultipleFilesSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "paths": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Paths relative to the root directory"
    }
  },
  "required": ["paths"],
  "additionalProperties": false
}`)

var writeFileSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Path relative to the root directory" },
    "content": { "type": "string", "description": "Full file content to write" }
  },
  "required": ["path", "content"],
  "additionalProperties": false
}`)

var editFileSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Path relative to the root directory" },
    "edits": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "old_text": { "type": "string", "description": "Exact text to replace" },
          "new_text": { "type": "string", "description": "Replacement text" }
        },
        "required": ["old_text", "new_text"],
        "additionalProperties": false
      },
      "description": "Replacements applied in order"
    },
    "dry_run": { "type": "boolean", "description": "Preview the diff without writing" }
  },
  "required": ["path", "edits"],
  "additionalProperties": false
}`)

var moveFileSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "source": { "type": "string", "description": "Existing path relative to the root directory" },
    "destination": { "type": "string", "description": "New path relative to the root directory" }
  },
  "required": ["source", "destination"],
  "additionalProperties": false
}`)

var searchFilesSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "pattern": { "type": "string", "description": "Case-insensitive substring to match against entry names" },
    "exclude_patterns": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Glob patterns for paths to skip"
    }
  },
  "required": ["pattern"],
  "additionalProperties": false
}`)
