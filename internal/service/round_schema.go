package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-skills-api/internal/models"
	"github.com/noah-isme/gema-skills-api/internal/progression"
)

const learnRoundSchema = `{
  "type": "object",
  "required": ["format"],
  "properties": {
    "format": {"type": "string", "minLength": 1},
    "body": {"type": "string"},
    "url": {"type": "string", "maxLength": 2048}
  },
  "additionalProperties": false
}`

const quizRoundSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "maxItems": 200,
      "items": {
        "type": "object",
        "required": ["prompt", "options", "correct_option"],
        "properties": {
          "prompt": {"type": "string", "minLength": 1},
          "options": {
            "type": "array",
            "minItems": 2,
            "maxItems": 10,
            "items": {"type": "string", "minLength": 1}
          },
          "correct_option": {"type": "integer", "minimum": 0}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

const projectRoundSchema = `{
  "type": "object",
  "required": ["brief"],
  "properties": {
    "brief": {"type": "string", "minLength": 1},
    "requirements": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    }
  },
  "additionalProperties": false
}`

// roundSchemas validates raw round payloads before they are decoded.
type roundSchemas struct {
	byKind map[models.RoundKind]*jsonschema.Schema
}

func newRoundSchemas() (*roundSchemas, error) {
	sources := map[models.RoundKind]string{
		models.RoundKindLearn:     learnRoundSchema,
		models.RoundKindQuiz:      quizRoundSchema,
		models.RoundKindProject:   projectRoundSchema,
		models.RoundKindFinalQuiz: quizRoundSchema,
	}

	schemas := &roundSchemas{byKind: make(map[models.RoundKind]*jsonschema.Schema, len(sources))}
	for kind, source := range sources {
		schema, err := jsonschema.CompileString("round-"+string(kind)+".json", source)
		if err != nil {
			return nil, fmt.Errorf("compile %s round schema: %w", kind, err)
		}
		schemas.byKind[kind] = schema
	}
	return schemas, nil
}

func (r *roundSchemas) validate(number int, raw []byte) error {
	kind, ok := models.RoundKindFor(number)
	if !ok {
		return progression.ErrInvalidRound
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return fmt.Errorf("%w: %v", progression.ErrInvalidRoundContent, err)
	}

	if err := r.byKind[kind].Validate(document); err != nil {
		return fmt.Errorf("%w: %v", progression.ErrInvalidRoundContent, err)
	}
	return nil
}
