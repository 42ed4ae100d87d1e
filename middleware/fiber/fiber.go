// Package fiber mounts billing provider webhook handlers on a Fiber app.
package fiber

import (
	gofiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/mihaimyh/paysync/pkg/billing"
)

// Register mounts each provider's webhook handler at
// pathPrefix + "/" + provider.Name() as a POST route. Fiber's fasthttp
// request is converted through the adaptor, which hands the provider the raw
// body bytes unmodified.
func Register(app *gofiber.App, pathPrefix string, providers ...billing.Provider) {
	if pathPrefix == "" {
		pathPrefix = "/webhooks"
	}
	for _, provider := range providers {
		app.Post(pathPrefix+"/"+provider.Name(), adaptor.HTTPHandler(provider.WebhookHandler()))
	}
}
