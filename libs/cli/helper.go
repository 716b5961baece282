package cli

import "os"

// RunWithArgs executes the given command with the specified command line
// args and environment variables set. It returns whatever cmd.Execute()
// returned, with os.Args and the touched environment restored afterwards.
func RunWithArgs(cmd Executable, args []string, env map[string]string) error {
	oargs := os.Args
	oenv := map[string]string{}
	defer func() {
		os.Args = oargs
		for k, v := range oenv {
			os.Setenv(k, v)
		}
	}()

	os.Args = args
	for k, v := range env {
		oenv[k] = os.Getenv(k)
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}

	return cmd.Execute()
}
