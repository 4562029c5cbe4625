package prefs

import (
	"github.com/ValentinKolb/dPrefs/cmd/util"
	"github.com/ValentinKolb/dPrefs/lib/common"
	"github.com/ValentinKolb/dPrefs/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var Logger = logger.GetLogger("cmd")

var (
	settings store.ISettings
	conf     *common.Config

	// PrefsCommands represents the prefs command group
	PrefsCommands = &cobra.Command{
		Use:                "prefs",
		Short:              "Read and write settings",
		Long:               "Read and write settings. All flags can also be set as environment variables DPREFS_<FLAG> (e.g. DPREFS_ENGINE=sqlite), .env and .env.local are loaded if present.",
		PersistentPreRunE:  openSettings,
		PersistentPostRunE: closeSettings,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the store flags to the prefs command
	util.SetupSettingsFlags(PrefsCommands)

	// Add subcommands
	PrefsCommands.AddCommand(getCmd)
	PrefsCommands.AddCommand(setCmd)
	PrefsCommands.AddCommand(rmCmd)
	PrefsCommands.AddCommand(hasCmd)
	PrefsCommands.AddCommand(clearCmd)
	PrefsCommands.AddCommand(keysCmd)
	PrefsCommands.AddCommand(exportCmd)
	PrefsCommands.AddCommand(importCmd)
	PrefsCommands.AddCommand(infoCmd)
	PrefsCommands.AddCommand(perfTestCmd)
}

// openSettings initializes logging and opens the configured settings store
func openSettings(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf = util.GetConfig()
	if err := conf.Validate(); err != nil {
		return err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}
	Logger.Debugf("configuration:%s", conf.String())

	var err error
	settings, err = util.OpenSettings(conf)
	return err
}

// Close closes the settings store opened by a prefs command, if any.
// Commands failing in RunE skip the post run hooks, so Execute calls it as well.
func Close() error {
	return closeSettings(nil, nil)
}

// closeSettings closes the store, which writes pending changes of maple
func closeSettings(_ *cobra.Command, _ []string) error {
	if settings == nil {
		return nil
	}
	err := settings.Close()
	settings = nil
	return err
}
