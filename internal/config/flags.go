package config

import "flag"

// Flags are the command-line overrides shared by the exporter commands.
type Flags struct {
	Config    string
	Debug     bool
	Store     string
	StoreRoot string
	Temp      string
	Tool      string
}

// Bind registers the flags on fs.
func Bind(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Store, "store", "", "Staging store kind (dir, memory)")
	fs.StringVar(&f.StoreRoot, "store-root", "", "Staging directory for the dir store")
	fs.StringVar(&f.Temp, "temp", "", "Directory for temporary files")
	fs.StringVar(&f.Tool, "tool", "", "Decimation tool executable")
	return f
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Store != "" {
		cfg.Store.Kind = f.Store
	}
	if f.StoreRoot != "" {
		cfg.Store.Root = f.StoreRoot
	}
	if f.Temp != "" {
		cfg.Export.TempDir = f.Temp
	}
	if f.Tool != "" {
		cfg.Decimation.Tool = f.Tool
	}
}
