package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// HomeFlag is the flag carrying the root directory for config and data.
	HomeFlag = "home"
	// TraceFlag makes error output include the full stack trace.
	TraceFlag = "trace"
)

// Executable is the minimal interface to execute a command.
type Executable interface {
	Execute() error
}

// PrepareBaseCmd wires the standard flag and environment handling into the
// root command: the --home and --trace flags, <prefix>_ prefixed environment
// variables and the config file found under the home directory.
func PrepareBaseCmd(cmd *cobra.Command, envPrefix, defaultHome string) Executor {
	cobra.OnInitialize(func() { initEnv(envPrefix) })
	cmd.PersistentFlags().StringP(HomeFlag, "", defaultHome, "directory for config and data")
	cmd.PersistentFlags().Bool(TraceFlag, false, "print out full stack trace on errors")
	cmd.PersistentPreRunE = concatCobraCmdFuncs(bindFlagsLoadViper, cmd.PersistentPreRunE)
	return Executor{cmd, os.Exit}
}

// initEnv binds the environment into viper, so e.g. ANOMA_HOME overrides the
// home flag when the prefix is ANOMA.
func initEnv(prefix string) {
	copyEnvVars(prefix)
	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// copyEnvVars duplicates variables like ANOMAHOME into ANOMA_HOME, so both
// spellings work for the user.
func copyEnvVars(prefix string) {
	prefix = strings.ToUpper(prefix)
	ps := prefix + "_"
	for _, e := range os.Environ() {
		kv := strings.SplitN(e, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k, v := kv[0], kv[1]
		if strings.HasPrefix(k, prefix) && !strings.HasPrefix(k, ps) {
			k2 := strings.Replace(k, prefix, ps, 1)
			os.Setenv(k2, v)
		}
	}
}

// Executor wraps the root command with error handling that terminates the
// process. Exit is a field so tests can replace os.Exit.
type Executor struct {
	*cobra.Command
	Exit func(int)
}

// ExitCoder lets an error carry its own exit code.
type ExitCoder interface {
	Code() int
}

// Execute runs the wrapped command and translates a returned error into a
// process exit.
func (e Executor) Execute() error {
	e.SilenceUsage = true
	e.SilenceErrors = true
	err := e.Command.Execute()
	if err != nil {
		if viper.GetBool(TraceFlag) {
			fmt.Fprintf(os.Stderr, "ERROR: %+v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
		}

		if ec, ok := err.(ExitCoder); ok {
			e.Exit(ec.Code())
		} else {
			e.Exit(1)
		}
	}
	return err
}

type cobraCmdFunc func(cmd *cobra.Command, args []string) error

// concatCobraCmdFuncs chains pre-run functions, returning on the first error.
func concatCobraCmdFuncs(fs ...cobraCmdFunc) cobraCmdFunc {
	return func(cmd *cobra.Command, args []string) error {
		for _, f := range fs {
			if f != nil {
				if err := f(cmd, args); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// bindFlagsLoadViper binds the command's flags into viper and reads the
// config file from the home directory. A missing config file is not an
// error.
func bindFlagsLoadViper(cmd *cobra.Command, args []string) error {
	// cmd.Flags() includes flags from this command and all persistent flags
	// from the parent.
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	homeDir := viper.GetString(HomeFlag)
	viper.Set(HomeFlag, homeDir)
	viper.SetConfigName("config")
	viper.AddConfigPath(homeDir)
	viper.AddConfigPath(filepath.Join(homeDir, "config"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}
