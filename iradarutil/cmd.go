/*
Copyright © 2026 the iRadar authors.
This file is part of iRadar.

iRadar is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

iRadar is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with iRadar.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package iradarutil is the command-line glue for the radar
// pipeline: the cobra command tree, the viper option table, and the
// wiring that assembles adapters, caches, and the orchestrator from
// configuration.
package iradarutil

import (
	"fmt"

	"github.com/imeteo/iradar"
	"github.com/imeteo/iradar/sources"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to iRadar.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "output",
			usage: `
              output specifies the root directory for published PNGs and
              extent side-cars.`,
			shorthand:  "o",
			defaultVal: "output",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "disable-upload",
			usage: `
              disable-upload keeps all outputs local even when object
              store credentials are configured.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "source",
			usage: `
              source specifies a single radar source. fetch requires it;
              extent and coverage-mask treat an empty value as "all".`,
			shorthand:  "s",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags(), extentCmd.Flags(), coverageMaskCmd.Flags()},
		},
		{
			name: "sources",
			usage: `
              sources specifies the comma-separated list of radar sources
              to composite.`,
			defaultVal: sources.Names(),
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags()},
		},
		{
			name: "backload",
			usage: `
              backload processes a historical time range (set with --hours
              or --from/--to) instead of the newest data. ARSO publishes
              no archive and is excluded.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags(), compositeCmd.Flags()},
		},
		{
			name: "hours",
			usage: `
              hours specifies the length of the backload range, ending
              now. Mutually exclusive with --from/--to.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags(), compositeCmd.Flags()},
		},
		{
			name: "from",
			usage: `
              from specifies the start of the backload range as
              "YYYY-MM-DD HH:MM" (UTC).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags(), compositeCmd.Flags()},
		},
		{
			name: "to",
			usage: `
              to specifies the end of the backload range as
              "YYYY-MM-DD HH:MM" (UTC).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags(), compositeCmd.Flags()},
		},
		{
			name: "update-extent",
			usage: `
              update-extent also rewrites the source's extent side-car
              after fetching.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags()},
		},
		{
			name: "resolution",
			usage: `
              resolution specifies the composite grid resolution in
              meters per pixel.`,
			defaultVal: float64(iradar.DefaultResolutionM),
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags(), coverageMaskCmd.Flags()},
		},
		{
			name: "no-individual",
			usage: `
              no-individual suppresses the per-source overlay PNGs; only
              the fused composite is published.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags()},
		},
		{
			name: "timestamp-tolerance",
			usage: `
              timestamp-tolerance specifies the matching window in
              minutes within which source frames count as simultaneous.`,
			defaultVal: 5,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags()},
		},
		{
			name: "require-arso",
			usage: `
              require-arso fails the run when no ARSO frame matches
              instead of compositing without it.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags()},
		},
		{
			name: "max-data-age",
			usage: `
              max-data-age specifies, in minutes, how old a source's
              newest frame may be before the source counts as an outage.`,
			defaultVal: 30,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags()},
		},
		{
			name: "min-core-sources",
			usage: `
              min-core-sources specifies how many of the five core
              sources must be available for a run to proceed.`,
			defaultVal: iradar.DefaultMinCoreSources,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags()},
		},
		{
			name: "reprocess-count",
			usage: `
              reprocess-count specifies how many matched timestamps to
              process per run, newest first.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags()},
		},
		{
			name: "force",
			usage: `
              force reprocesses timestamps whose composite PNG already
              exists locally or in the object store.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags()},
		},
		{
			name: "no-cache",
			usage: `
              no-cache disables the processed-frame cache; every frame is
              downloaded and decoded from the provider.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags(), fetchCmd.Flags()},
		},
		{
			name: "cache-dir",
			usage: `
              cache-dir specifies the root directory of the
              processed-frame and transform-grid caches.`,
			defaultVal: ".iradar-cache",
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags(), fetchCmd.Flags()},
		},
		{
			name: "cache-ttl",
			usage: `
              cache-ttl specifies the processed-frame cache lifetime in
              minutes.`,
			defaultVal: 60,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags(), fetchCmd.Flags()},
		},
		{
			name: "no-cache-upload",
			usage: `
              no-cache-upload keeps cache entries local instead of
              mirroring them to the object store.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags(), fetchCmd.Flags()},
		},
		{
			name: "clear-cache",
			usage: `
              clear-cache removes the cached frames for the selected
              sources before the run starts.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{compositeCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("IRADAR")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(fetchCmd)
	Root.AddCommand(compositeCmd)
	Root.AddCommand(extentCmd)
	Root.AddCommand(coverageMaskCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("iradar: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "iradar",
	Short: "A Central-European weather radar compositing pipeline.",
	Long: `iRadar ingests radar composites from six national weather services,
reprojects them onto a common Web-Mercator grid, fuses them by per-pixel
maximum reflectivity, and publishes PNG overlays with JSON extent
side-cars to local disk and an S3-compatible object store.

Configuration can be changed by using a configuration file (and providing
the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'IRADAR_var'
where 'var' is the name of the variable to be set. Object store
credentials come from the DIGITALOCEAN_SPACES_* environment variables and
logging from IMETEO_LOG_{LEVEL,FORMAT,FILE}.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		InitLog()
		return setConfig()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of iRadar.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("iRadar v%s\n", iradar.Version)
	},
	DisableAutoGenTag: true,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and cache frames from one source",
	Long: `fetch downloads radar frames from a single source, decodes them into
the canonical representation, and stores them in the processed-frame
cache without compositing. With --backload it walks the provider's
archive over the requested time range.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch()
	},
	DisableAutoGenTag: true,
}

var compositeCmd = &cobra.Command{
	Use:   "composite",
	Short: "Build and publish fused radar composites",
	Long: `composite runs the full pipeline: probe the configured sources, gate
on the core-source quorum, match timestamps across providers, reproject
each matched frame onto the reference grid, fuse by per-pixel maximum
reflectivity, and publish the PNG overlays and extent side-cars.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runComposite()
	},
	DisableAutoGenTag: true,
}

var extentCmd = &cobra.Command{
	Use:   "extent",
	Short: "Write extent side-cars",
	Long: `extent writes the extent_index.json side-car for one source, or for
every source plus the combined document when --source is "all" or
empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtent()
	},
	DisableAutoGenTag: true,
}

var coverageMaskCmd = &cobra.Command{
	Use:   "coverage-mask",
	Short: "Render the radar coverage mask",
	Long: `coverage-mask renders a PNG on the reference grid marking which
pixels at least one of the selected sources can supply: covered pixels
are transparent, uncovered pixels opaque grey.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCoverageMask()
	},
	DisableAutoGenTag: true,
}
