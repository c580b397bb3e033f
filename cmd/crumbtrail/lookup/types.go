// types.go
package lookup

import (
	"strings"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/segment"
	"github.com/SanteonNL/crumbtrail/models/fhir"
)

// NamedResponse is the part of a facility or patient read we need
type NamedResponse struct {
	Name string `json:"name"`
}

// EncounterResponse is the part of an encounter read we need
type EncounterResponse struct {
	Period fhir.Period `json:"period"`
}

// ErrorResponse is the body the care API returns on failures
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Endpoint describes how to read the name of one entity type
type Endpoint struct {
	Path    string // Path template, "{id}" is replaced by the identifier
	Extract func(body []byte) (string, error)
}

func (e Endpoint) PathFor(id string) string {
	return strings.ReplaceAll(e.Path, "{id}", id)
}

// DefaultEndpoints are the read endpoints of the care API
func DefaultEndpoints() map[segment.EntityType]Endpoint {
	return map[segment.EntityType]Endpoint{
		segment.Facility: {
			Path:    "/api/v1/getallfacilities/{id}/",
			Extract: extractName,
		},
		segment.Patient: {
			Path:    "/api/v1/patient/{id}/",
			Extract: extractName,
		},
		segment.Encounter: {
			Path:    "/api/v1/encounter/{id}/",
			Extract: extractEncounterName,
		},
	}
}

const encounterPrefix = "Encounter on "

// EncounterName renders the display name of an encounter from its start.
// An empty start yields "" so that the caller falls back to the identifier.
func EncounterName(start string) string {
	start = strings.TrimSpace(start)
	if start == "" {
		return ""
	}
	dt, err := fhir.ParseDateTime(start)
	if err != nil {
		return encounterPrefix + start
	}
	return encounterDisplayName(&dt)
}

func encounterDisplayName(start *fhir.DateTime) string {
	if start == nil || start.IsZero() {
		return ""
	}
	return encounterPrefix + start.Display()
}
