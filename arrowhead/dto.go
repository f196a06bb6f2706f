package arrowhead

type SystemRequest struct {
	SystemName         string `json:"systemName"`
	Address            string `json:"address"`
	Port               int    `json:"port"`
	AuthenticationInfo string `json:"authenticationInfo,omitempty"`
}

type ServiceQueryForm struct {
	ServiceDefinitionRequirement string   `json:"serviceDefinitionRequirement"`
	InterfaceRequirements        []string `json:"interfaceRequirements,omitempty"`
}

type OrchestrationForm struct {
	RequesterSystem    SystemRequest    `json:"requesterSystem"`
	RequestedService   ServiceQueryForm `json:"requestedService"`
	OrchestrationFlags map[string]bool  `json:"orchestrationFlags"`
}

type System struct {
	ID         int64  `json:"id"`
	SystemName string `json:"systemName"`
	Address    string `json:"address"`
	Port       int    `json:"port"`
}

type ServiceDefinition struct {
	ID                int64  `json:"id"`
	ServiceDefinition string `json:"serviceDefinition"`
}

type ServiceInterface struct {
	ID            int64  `json:"id"`
	InterfaceName string `json:"interfaceName"`
}

// OrchestrationResult is one provider matched by the orchestrator.
type OrchestrationResult struct {
	Provider            System             `json:"provider"`
	Service             ServiceDefinition  `json:"service"`
	ServiceURI          string             `json:"serviceUri"`
	Secure              string             `json:"secure"`
	Metadata            map[string]string  `json:"metadata,omitempty"`
	Interfaces          []ServiceInterface `json:"interfaces"`
	Version             int                `json:"version"`
	AuthorizationTokens map[string]string  `json:"authorizationTokens,omitempty"`
	Warnings            []string           `json:"warnings,omitempty"`
}

type OrchestrationResponse struct {
	Response []OrchestrationResult `json:"response"`
}

type ServiceRegistryRequest struct {
	ServiceDefinition string            `json:"serviceDefinition"`
	ProviderSystem    SystemRequest     `json:"providerSystem"`
	ServiceURI        string            `json:"serviceUri"`
	Secure            string            `json:"secure"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Interfaces        []string          `json:"interfaces"`
}

type ServiceRegistryResponse struct {
	ID                int64              `json:"id"`
	ServiceDefinition ServiceDefinition  `json:"serviceDefinition"`
	Provider          System             `json:"provider"`
	ServiceURI        string             `json:"serviceUri"`
	Secure            string             `json:"secure"`
	Metadata          map[string]string  `json:"metadata,omitempty"`
	Interfaces        []ServiceInterface `json:"interfaces"`
}
