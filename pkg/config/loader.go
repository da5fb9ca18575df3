package config

// DefaultEnvFile is read from the working directory unless the loader names another
const DefaultEnvFile = ".env"

// Loader builds a Config from the full hierarchy: defaults → file → .env → env → flags.
// It keeps argv so a reload produces the same overrides as startup.
type Loader struct {
	Args    []string
	EnvFile string
}

// NewLoader creates a loader for the given command-line arguments (without the program name)
func NewLoader(args []string) *Loader {
	return &Loader{Args: args, EnvFile: DefaultEnvFile}
}

// Load runs the hierarchy and validates the result
func (l *Loader) Load() (*Config, error) {
	env := dotEnv(l.EnvFile)

	path, err := l.configPath(env)
	if err != nil {
		return nil, err
	}

	cfg := NewConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	cfg.loadEnv(env)
	if err := cfg.LoadFromFlags(l.Args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath resolves the YAML path with precedence flag → DUSKD_CONFIG → default
func (l *Loader) configPath(env envLookup) (string, error) {
	scratch := NewConfig()
	fs := scratch.flagSet()
	if err := fs.Parse(l.Args); err != nil {
		return "", err
	}
	if fs.Changed("config") {
		return scratch.ConfigFile, nil
	}
	if v := env("DUSKD_CONFIG"); v != "" {
		return v, nil
	}
	return DefaultConfigFile(), nil
}
