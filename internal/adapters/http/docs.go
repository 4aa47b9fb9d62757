package http

import (
	"log/slog"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

// DefaultOpenAPIPath is used when Dependencies.OpenAPIPath is empty.
const DefaultOpenAPIPath = "api/openapi.yaml"

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Trip Planner API · Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body style="margin:0">
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: '/docs/openapi.json', dom_id: '#swagger-ui', deepLinking: true });
  </script>
</body>
</html>`

type apiDocs struct {
	yaml []byte
	json []byte
}

// loadAPIDocs reads and validates the OpenAPI document. A missing or invalid
// document is logged and leaves the raw routes answering 404.
func loadAPIDocs(path string) apiDocs {
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("openapi document not found", "path", path, "error", err)
		return apiDocs{}
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		slog.Warn("openapi document unreadable", "path", path, "error", err)
		return apiDocs{}
	}
	if err := doc.Validate(loader.Context); err != nil {
		slog.Warn("openapi document invalid", "path", path, "error", err)
	}

	js, err := doc.MarshalJSON()
	if err != nil {
		slog.Warn("openapi document not serialisable", "error", err)
	}
	return apiDocs{yaml: raw, json: js}
}

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml and /docs/openapi.json.
func SetupDocs(app *fiber.App, path string) {
	if path == "" {
		path = DefaultOpenAPIPath
	}
	docs := loadAPIDocs(path)

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if len(docs.yaml) == 0 {
			return errNotFound(c, "openapi document not available")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(docs.yaml)
	})

	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		if len(docs.json) == 0 {
			return errNotFound(c, "openapi document not available")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(docs.json)
	})
}
