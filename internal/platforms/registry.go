// Package platforms builds the platform clients from configuration.
package platforms

import (
	"fmt"
	"net/http"

	"github.com/darmiel/linkgate/internal/config"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/platforms/facebook"
	"github.com/darmiel/linkgate/internal/platforms/instagram"
	"github.com/darmiel/linkgate/internal/platforms/tiendanube"
)

// BuildRegistry creates one client per configured platform.
// All clients share httpClient.
func BuildRegistry(cfgs []config.PlatformConfig, httpClient *http.Client) (map[core.Platform]core.Exchanger, error) {
	registry := make(map[core.Platform]core.Exchanger)
	for _, cfg := range cfgs {
		var (
			client core.Exchanger
			err    error
		)
		switch cfg.Type {
		case facebook.Type:
			client, err = facebook.NewFromConfig(cfg, httpClient)
		case instagram.Type:
			client, err = instagram.NewFromConfig(cfg, httpClient)
		case tiendanube.Type:
			client, err = tiendanube.NewFromConfig(cfg, httpClient)
		default:
			return nil, fmt.Errorf("unknown platform type %q", cfg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("building %s platform: %w", cfg.Type, err)
		}
		if _, ok := registry[client.Platform()]; ok {
			return nil, fmt.Errorf("platform %q configured more than once", cfg.Type)
		}
		registry[client.Platform()] = client
	}
	return registry, nil
}

// Capabilities lists what a platform client supports.
type Capabilities struct {
	Platform   core.Platform `json:"platform"`
	Exchange   bool          `json:"exchange"`
	Renew      bool          `json:"renew"`
	Introspect bool          `json:"introspect"`
	Authorize  bool          `json:"authorize"`
}

func CapabilitiesOf(ex core.Exchanger) Capabilities {
	_, renew := ex.(core.Renewer)
	_, introspect := ex.(core.Introspector)
	_, authorize := ex.(core.Authorizer)
	return Capabilities{
		Platform:   ex.Platform(),
		Exchange:   true,
		Renew:      renew,
		Introspect: introspect,
		Authorize:  authorize,
	}
}
