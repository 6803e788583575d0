package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"brio/config"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configInit bool
	configEdit bool
)

var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Show the effective settings, or write and edit a config file",
	Example: `  brio config
  brio config --init
  brio config --init ./brio.yaml
  brio config --edit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !configInit && !configEdit {
			printConfig(cmd.OutOrStdout(), v)
			return nil
		}
		path, err := configPath(args)
		if err != nil {
			return err
		}
		if configInit {
			if err := config.WriteTemplate(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote config file to:", path)
		}
		if configEdit {
			return editConfig(path)
		}
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "write a commented config file instead of printing")
	configCmd.Flags().BoolVar(&configEdit, "edit", false, "open the config file in $EDITOR, creating it first if needed")
}

// configPath is the argument, --config, the file in use, or the default
// location, in that order.
func configPath(args []string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case configFile != "":
		return configFile, nil
	case v.ConfigFileUsed() != "":
		return v.ConfigFileUsed(), nil
	}
	return config.DefaultPath()
}

func editConfig(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := config.WriteTemplate(path); err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}

	c, err := editor.Cmd("brio", path)
	if err != nil {
		return fmt.Errorf("unable to set config file: %w", err)
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("unable to run command: %w", err)
	}
	return nil
}

func printConfig(w io.Writer, v *viper.Viper) {
	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "# %s\n", used)
	} else {
		fmt.Fprintln(w, "# no config file, defaults and environment only")
	}
	keys := v.AllKeys()
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s = %v\n", k, v.Get(k))
	}
}
