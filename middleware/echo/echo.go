// Package echo mounts billing provider webhook handlers on an Echo router.
package echo

import (
	goecho "github.com/labstack/echo/v4"

	"github.com/mihaimyh/paysync/pkg/billing"
)

// Register mounts each provider's webhook handler at
// pathPrefix + "/" + provider.Name() as a POST route. The underlying
// http.Handler is wrapped unmodified so the provider sees the raw body.
func Register(e *goecho.Echo, pathPrefix string, providers ...billing.Provider) {
	if pathPrefix == "" {
		pathPrefix = "/webhooks"
	}
	for _, provider := range providers {
		e.POST(pathPrefix+"/"+provider.Name(), goecho.WrapHandler(provider.WebhookHandler()))
	}
}
