package config

import "github.com/ZanzyTHEbar/compete-docs-tracker/internal/types"

const (
	DefaultThreshold         = 0.5
	DefaultTimeout           = "10s"
	DefaultUserAgent         = "ServiceNow-Comparison-Bot/1.0"
	DefaultContentMode       = "raw"
	DefaultTimezone          = "UTC"
	DefaultPort              = "8080"
	DefaultCacheTTL          = "30s"
	DefaultRequestsPerMinute = 120
	DefaultConfigFile        = "tracker.toml"
)

const (
	gleanConnector = "https://docs.glean.com/connectors/native/servicenow/"
	gleanErrors    = "https://docs.glean.com/troubleshooting/error-codes/servicenow/"
	googleGemini   = "https://docs.cloud.google.com/gemini/enterprise/docs/servicenow"
	msSearch       = "https://learn.microsoft.com/en-us/microsoftsearch/"
)

// DefaultVendors is the built-in watchlist of ServiceNow connector documentation
func DefaultVendors() []VendorConfig {
	return []VendorConfig{
		{
			Key:   string(types.VendorGlean),
			Label: "Glean",
			URLs: []string{
				gleanConnector + "home",
				gleanConnector + "about",
				gleanConnector + "setup",
				gleanConnector + "setup-advanced",
				gleanConnector + "servicenow-custom-role",
				gleanErrors + "servicenow-1",
				gleanErrors + "servicenow-2",
				gleanErrors + "servicenow-3",
				gleanErrors + "servicenow-4",
				gleanErrors + "servicenow-5",
				gleanErrors + "servicenow-6",
				gleanErrors + "servicenow-7",
				gleanErrors + "servicenow-8",
				gleanErrors + "servicenow-9",
				"https://www.glean.com/agents/servicenow",
			},
		},
		{
			Key:   string(types.VendorGoogle),
			Label: "Google",
			URLs: []string{
				"https://docs.cloud.google.com/integration-connectors/docs/connectors/servicenow/configure",
				googleGemini,
				googleGemini + "/set-up-data-store",
				googleGemini + "/third-party-config",
			},
		},
		{
			Key:   string(types.VendorMicrosoft),
			Label: "Microsoft",
			URLs: []string{
				msSearch + "servicenow-knowledge-overview",
				msSearch + "servicenow-knowledge-admin-setup",
				msSearch + "granting-table-access-servicenow",
				msSearch + "servicenow-knowledge-deployment",
				msSearch + "servicenow-knowledge-troubleshooting",
				msSearch + "servicenow-catalog-overview",
				msSearch + "servicenow-catalog-admin-setup",
				msSearch + "servicenow-catalog-deployment",
				msSearch + "servicenow-catalog-troubleshooting",
				msSearch + "servicenow-tickets-overview",
				msSearch + "servicenow-tickets-admin-setup",
				msSearch + "servicenow-tickets-deployment",
				msSearch + "servicenow-tickets-troubleshooting",
			},
		},
	}
}
