package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/larder/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize larder storage",
		Long:  "Create the configuration, data and image directories, then create the catalog database.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit()
		},
	}
}

func (a *app) runInit() error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	// An explicit --data-dir is remembered so later commands find the catalog.
	if a.dataDir != "" {
		if err := setConfigValue(paths.ConfigFile(configDir), cfgKeyDataDir, a.settings.DataDir); err != nil {
			return err
		}
	}

	c, err := a.openCatalog()
	if err != nil {
		return err
	}
	defer c.close(a)

	if a.jsonMode {
		return a.printJSON(map[string]string{
			"config_dir": configDir,
			"data_dir":   a.settings.DataDir,
			"image_dir":  c.images.Dir(),
		})
	}
	fmt.Fprintln(a.out, "Larder initialized")
	fmt.Fprintf(a.out, "  config: %s\n  data:   %s\n  images: %s\n", configDir, a.settings.DataDir, c.images.Dir())
	return nil
}

// setConfigValue sets a top-level key in config.yaml, keeping the other
// keys and comments.
func setConfigValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("parse config: top level is not a mapping")
	}

	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1].SetString(value)
			replaced = true
			break
		}
	}
	if !replaced {
		k := &yaml.Node{}
		k.SetString(key)
		v := &yaml.Node{}
		v.SetString(value)
		root.Content = append(root.Content, k, v)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
