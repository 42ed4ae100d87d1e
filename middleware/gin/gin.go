// Package gin mounts billing provider webhook handlers on a Gin router.
package gin

import (
	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/paysync/pkg/billing"
)

// Register mounts each provider's webhook handler at
// pathPrefix + "/" + provider.Name() as a POST route. The underlying
// http.Handler is wrapped unmodified so the provider sees the raw body.
func Register(router gongin.IRouter, pathPrefix string, providers ...billing.Provider) {
	if pathPrefix == "" {
		pathPrefix = "/webhooks"
	}
	for _, provider := range providers {
		router.POST(pathPrefix+"/"+provider.Name(), gongin.WrapH(provider.WebhookHandler()))
	}
}
