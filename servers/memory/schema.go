package memory

import "github.com/qri-io/jsonschema"

type createEntitiesArgs struct {
	Entities []entity `json:"entities"`
}

type createRelationsArgs struct {
	Relations []relation `json:"relations"`
}

type addObservationsArgs struct {
	Observations []observation `json:"observations"`
}

type deleteEntitiesArgs struct {
	EntityNames []string `json:"entity_names"`
}

type deleteObservationsArgs struct {
	Deletions []observation `json:"deletions"`
}

type deleteRelationsArgs struct {
	Relations []relation `json:"relations"`
}

type searchNodesArgs struct {
	Query string `json:"query"`
}

type openNodesArgs struct {
	Names []string `json:"names"`
}

var createEntitiesSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": { "type": "string", "description": "Unique name of the entity" },
          "entity_type": { "type": "string", "description": "Classification such as person or project" },
          "observations": {
            "type": "array",
            "items": { "type": "string" },
            "description": "Facts recorded about the entity"
          }
        },
        "required": ["name", "entity_type", "observations"],
        "additionalProperties": false
      },
      "description": "Entities to add"
    }
  },
  "required": ["entities"],
  "additionalProperties": false
}`)

var createRelationsSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "relations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "from": { "type": "string", "description": "Name of the entity the relation starts at" },
          "to": { "type": "string", "description": "Name of the entity the relation points to" },
          "relation_type": { "type": "string", "description": "Relation type, in active voice" }
        },
        "required": ["from", "to", "relation_type"],
        "additionalProperties": false
      },
      "description": "Relations to add"
    }
  },
  "required": ["relations"],
  "additionalProperties": false
}`)

var addObservationsSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "observations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "entity_name": { "type": "string", "description": "Name of the entity to extend" },
          "contents": {
            "type": "array",
            "items": { "type": "string" },
            "description": "Facts to record"
          }
        },
        "required": ["entity_name", "contents"],
        "additionalProperties": false
      },
      "description": "Observations to add per entity"
    }
  },
  "required": ["observations"],
  "additionalProperties": false
}`)

var deleteEntitiesSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "entity_names": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Names of the entities to remove"
    }
  },
  "required": ["entity_names"],
  "additionalProperties": false
}`)

var deleteObservationsSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "deletions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "entity_name": { "type": "string", "description": "Name of the entity holding the observations" },
          "observations": {
            "type": "array",
            "items": { "type": "string" },
            "description": "Facts to remove"
          }
        },
        "required": ["entity_name", "observations"],
        "additionalProperties": false
      },
      "description": "Observations to remove per entity"
    }
  },
  "required": ["deletions"],
  "additionalProperties": false
}`)

var deleteRelationsSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "relations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "from": { "type": "string", "description": "Name of the entity the relation starts at" },
          "to": { "type": "string", "description": "Name of the entity the relation points to" },
          "relation_type": { "type": "string", "description": "Relation type" }
        },
        "required": ["from", "to", "relation_type"],
        "additionalProperties": false
      },
      "description": "Relations to remove"
    }
  },
  "required": ["relations"],
  "additionalProperties": false
}`)

var readGraphSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {},
  "additionalProperties": false
}`)

var searchNodesSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "Substring matched against names, types, and observations" }
  },
  "required": ["query"],
  "additionalProperties": false
}`)

var openNodesSchema = jsonschema.Must(`{
  "type": "object",
  "properties": {
    "names": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Names of the entities to fetch"
    }
  },
  "required": ["names"],
  "additionalProperties": false
}`)
