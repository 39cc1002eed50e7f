// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main is the root cmd of the vSphere automation modules.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/virtops/vsphere-automation-modules/internal/pkg/module"
	_ "github.com/virtops/vsphere-automation-modules/internal/pkg/modules/deployovf"
	_ "github.com/virtops/vsphere-automation-modules/internal/pkg/modules/objectperms"
	"github.com/virtops/vsphere-automation-modules/internal/pkg/vcclient"
)

var cfg struct {
	paramsFile    string
	check         bool
	debug         bool
	hostname      string
	username      string
	password      string
	port          int
	validateCerts bool
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "vsphere-automation-modules",
	Short:         "Ansible-style automation modules for vSphere",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := app(); err != nil {
		os.Exit(1)
	}
}

func app() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.paramsFile, "params", "", "module parameters document, YAML or JSON ('-' reads stdin)")
	pf.BoolVar(&cfg.check, "check", false, "report what would change without changing anything")
	pf.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	pf.StringVar(&cfg.hostname, "hostname", os.Getenv("VMWARE_HOST"), "vCenter hostname")
	pf.StringVar(&cfg.username, "username", os.Getenv("VMWARE_USER"), "vCenter username")
	pf.StringVar(&cfg.password, "password", os.Getenv("VMWARE_PASSWORD"), "vCenter password")
	pf.IntVar(&cfg.port, "port", 0, "vCenter port")
	pf.BoolVar(&cfg.validateCerts, "validate-certs", true, "verify the vCenter TLS certificate")

	for _, name := range module.List() {
		rootCmd.AddCommand(moduleCommand(module.Get(name)))
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available modules",
		RunE: func(*cobra.Command, []string) error {
			for _, name := range module.List() {
				fmt.Println(name)
			}
			return nil
		},
	})
}

func moduleCommand(m module.Module) *cobra.Command {
	return &cobra.Command{
		Use:          m.Name(),
		Short:        fmt.Sprintf("Run the %s module", m.Name()),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModule(cmd, m)
		},
	}
}

func runModule(cmd *cobra.Command, m module.Module) error {
	logger, err := buildLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	raw, err := readParams()
	if err != nil {
		return emit(module.Result{}, err)
	}
	mergeConnectionFlags(cmd, raw)

	p, err := m.ArgSpec().Resolve(raw)
	if err != nil {
		return emit(module.Result{}, err)
	}

	ctx := cmd.Context()
	sess, err := vcclient.Connect(ctx, p.Connection(), logger)
	if err != nil {
		return emit(module.Result{}, err)
	}
	defer sess.Close(ctx)

	var r module.Result
	if cfg.check {
		r, err = m.Check(ctx, sess, logger, p)
	} else {
		r, err = m.Run(ctx, sess, logger, p)
	}

	return emit(r, err)
}

func buildLogger() (*zap.Logger, error) {
	loggerCfg := zap.NewProductionConfig()
	if cfg.debug {
		loggerCfg = zap.NewDevelopmentConfig()
		loggerCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		loggerCfg.Level.SetLevel(zap.DebugLevel)
	}
	return loggerCfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

func readParams() (map[string]any, error) {
	raw := map[string]any{}
	if cfg.paramsFile == "" {
		return raw, nil
	}

	var (
		data []byte
		err  error
	)
	if cfg.paramsFile == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(cfg.paramsFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}
	return raw, nil
}

// mergeConnectionFlags overlays connection flags onto the params document.
// Flags win over the document; env fallbacks are handled by the arg spec.
func mergeConnectionFlags(cmd *cobra.Command, raw map[string]any) {
	if cfg.hostname != "" {
		raw["hostname"] = cfg.hostname
	}
	if cfg.username != "" {
		raw["username"] = cfg.username
	}
	if cfg.password != "" {
		raw["password"] = cfg.password
	}
	if cmd.Flags().Changed("port") {
		raw["port"] = cfg.port
	}
	if cmd.Flags().Changed("validate-certs") {
		raw["validate_certs"] = cfg.validateCerts
	}
}

// emit writes the flat result document to stdout. A non-nil err produces a
// failed result and is propagated for the process exit code.
func emit(r module.Result, err error) error {
	out := map[string]any{
		"changed": r.Changed,
		"failed":  err != nil,
	}
	if err != nil {
		out["msg"] = err.Error()
	} else if r.Msg != "" {
		out["msg"] = r.Msg
	}
	if len(r.Warnings) > 0 {
		out["warnings"] = r.Warnings
	}
	for k, v := range r.Data {
		out[k] = v
	}

	doc, merr := json.MarshalIndent(out, "", "  ")
	if merr != nil {
		return fmt.Errorf("failed to encode result: %w", merr)
	}
	fmt.Println(string(doc))

	return err
}
