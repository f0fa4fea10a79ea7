package config

// FoundryConfig represents the parts of foundry.toml read by treb-proxy
type FoundryConfig struct {
	Profile      map[string]ProfileConfig `toml:"profile"`
	RpcEndpoints map[string]string        `toml:"rpc_endpoints"`
}

// ProfileConfig represents a profile's foundry configuration
type ProfileConfig struct {
	SrcPath string `toml:"src,omitempty"`
	OutPath string `toml:"out,omitempty"`
}

// OutDir returns the artifact directory of the default profile, if set
func (f *FoundryConfig) OutDir() string {
	if f == nil {
		return ""
	}
	return f.Profile["default"].OutPath
}
