package config

// Config represents the complete verigate configuration.
type Config struct {
	Service     ServiceConfig `yaml:"service"`
	BaseURL     string        `yaml:"base_url"`
	ScriptsDir  string        `yaml:"scripts_dir"`
	Interpreter string        `yaml:"interpreter"`
	// IDToken is forwarded to checker scripts as the ID_TOKEN environment
	// variable. Optional; scripts degrade to unauthenticated checks without it.
	IDToken string `yaml:"id_token,omitempty"`

	// SourcePath records where the config was loaded from ("" when running
	// on pure defaults). Not part of the YAML surface.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// DefaultBaseURL is the endpoint used when neither config nor the BASE_URL
// environment variable provide one. Matches the checker scripts' own default.
const DefaultBaseURL = "http://localhost:8001"

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "verigate",
			LogLevel: "warn",
		},
		BaseURL:     DefaultBaseURL,
		ScriptsDir:  "scripts",
		Interpreter: "python3",
	}
}
