package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "Ticket Router",
    "description": "Routes enriched support tickets to offices and managers",
    "version": "1.0"
  },
  "basePath": "/",
  "paths": {
    "/healthz": {"get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}, "503": {"description": "Database unavailable"}}}},
    "/api/v1/intake/tickets": {"post": {"tags": ["intake"], "summary": "Submit raw tickets", "parameters": [{"name": "Idempotency-Key", "in": "header", "type": "string"}, {"name": "X-Admin-Key", "in": "header", "type": "string"}], "responses": {"200": {"description": "Per-ticket results"}, "400": {"description": "Invalid batch"}, "409": {"description": "Idempotency key reused with another body"}}}},
    "/api/v1/intake/events": {"post": {"tags": ["intake"], "summary": "Ingest enrichment event", "responses": {"200": {"description": "Assignment result"}, "400": {"description": "Invalid event"}}}},
    "/api/v1/intake/results": {"get": {"tags": ["intake"], "summary": "Assignment results by client", "parameters": [{"name": "clientIds", "in": "query", "type": "string", "required": true}], "responses": {"200": {"description": "Results and missing ids"}}}},
    "/api/v1/tickets/{id}": {"get": {"tags": ["tickets"], "summary": "Ticket details", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "Ticket"}, "404": {"description": "Not found"}}}},
    "/api/v1/tickets/{id}/assign": {"post": {"tags": ["tickets"], "summary": "Assign ticket", "parameters": [{"name": "id", "in": "path", "type": "integer", "required": true}], "responses": {"200": {"description": "Assigned or unassigned ticket"}, "404": {"description": "Not found"}}}},
    "/api/v1/debug/routing": {"get": {"tags": ["debug"], "summary": "Routing explanation", "parameters": [{"name": "ticket_id", "in": "query", "type": "integer", "required": true}], "responses": {"200": {"description": "Dry-run plan"}}}},
    "/api/v1/managers": {"get": {"tags": ["directory"], "summary": "List managers", "responses": {"200": {"description": "Managers"}}}},
    "/api/v1/offices": {"get": {"tags": ["directory"], "summary": "List offices", "responses": {"200": {"description": "Offices"}}}}
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
