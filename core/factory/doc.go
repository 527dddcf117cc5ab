// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[geocode.Provider]()
//	reg.Register("google", func(conf map[string]any) (geocode.Provider, error) {
//	    var c struct{ APIKey string `json:"api_key"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return google.New(c.APIKey), nil
//	})
//	p, err := reg.Create(factory.ModuleConfig{Type: "google", Conf: map[string]any{"api_key": "k"}})
package factory
