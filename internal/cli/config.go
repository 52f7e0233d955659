package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vk/jsonshape/internal/app"
)

// loadConfig binds flags, environment and the optional config file into
// the invocation's viper instance. Precedence: flags, JSONSHAPE_* variables,
// config file, flag defaults.
func (e *env) loadConfig(cmd *cobra.Command) error {
	v := e.v
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	cfgFile := v.GetString("config")
	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	default:
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".jsonshape")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (cfgFile == "" && os.IsNotExist(err)) {
			return nil
		}
		return usageError("failed to read config file: %v", err)
	}
	return nil
}

// config translates the merged settings into a validated app.Config.
func (e *env) config() (*app.Config, error) {
	v := e.v
	cfg, err := app.NewConfig(app.Config{
		ViewsPath:        v.GetString("views"),
		Format:           v.GetString("format"),
		Indent:           v.GetInt("indent"),
		IncludeRoot:      v.GetBool("include-root"),
		IncludeChildRoot: v.GetBool("include-child-root"),
		CacheSize:        v.GetInt("cache-size"),
		RenderCacheSize:  v.GetInt("render-cache-size"),
		LogLevel:         v.GetString("log-level"),
		LogFormat:        v.GetString("log-format"),
		Watch:            v.GetBool("watch"),
	})
	if err != nil {
		return nil, usageError("%v", err)
	}
	return cfg, nil
}
