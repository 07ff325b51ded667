// Command snes816asm drives the code-generation kernel from the command
// line. It does not parse a source-assembly language — that is an
// explicit Non-goal of the kernel itself — so "build" demonstrates the
// library against a small fixed demo program; real callers are expected
// to link pkg/asm directly and write their own generator callbacks.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snes65816/romgen/pkg/asm"
	"github.com/snes65816/romgen/pkg/debugfile"
	"github.com/snes65816/romgen/pkg/inst"
	"github.com/snes65816/romgen/pkg/rom"
)

var log = logrus.New()

func main() {
	rootCmd := &cobra.Command{
		Use:   "snes816asm",
		Short: "65C816 code-generation kernel driver",
	}

	var configPath string
	var verbose bool

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble the demo program and write a ROM, label file, and coverage file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			cfg := rom.DefaultBuildConfig()
			if configPath != "" {
				loaded, err := rom.LoadBuildConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			return runBuild(cfg)
		},
	}
	buildCmd.Flags().StringVar(&configPath, "config", "", "YAML build config path (defaults used if omitted)")
	buildCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(buildCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("build failed")
		os.Exit(1)
	}
}

func runBuild(cfg rom.BuildConfig) error {
	mode, err := cfg.Mode()
	if err != nil {
		return err
	}

	ctx := rom.NewBuildContext(cfg.ROMSizeBytes, mode)
	entry := demoProgram()
	ctx.RegisterEntry(entry)

	log.WithField("rom_size_bytes", cfg.ROMSizeBytes).Info("laying out ROM")
	if err := ctx.Layout(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if err := ctx.ApplyRelocations(); err != nil {
		return fmt.Errorf("applying relocations: %w", err)
	}

	if err := writeFile(cfg.OutputROM, ctx.ROM()); err != nil {
		return err
	}
	log.WithField("path", cfg.OutputROM).Info("wrote ROM image")

	if err := writeWith(cfg.OutputLabels, func(f *os.File) error {
		return debugfile.WriteLabels(f, ctx.Registry)
	}); err != nil {
		return err
	}
	log.WithField("path", cfg.OutputLabels).Info("wrote label file")

	if err := writeWith(cfg.OutputCoverage, func(f *os.File) error {
		return debugfile.WriteCoverage(f, ctx.ROM(), ctx.Registry)
	}); err != nil {
		return err
	}
	log.WithField("path", cfg.OutputCoverage).Info("wrote coverage file")

	return nil
}

// demoProgram builds a tiny, self-contained entry point: it zeroes a
// status byte, calls a subroutine that idles in a tight loop, then
// returns — enough to exercise register-size tracking, calling
// conventions, branch lowering, and the store-zero composite helper in
// one pass.
func demoProgram() *asm.FuncSymbol {
	status := asm.NewData("status_byte", []byte{0})

	idleLoop := asm.NewFunc("idle_loop", func(b *asm.Builder) {
		b.RegX16()
		l := b.CreateLabel()
		l.Define(b)
		b.Emit(inst.Instruction{Op: inst.NOP})
		b.BranchAlways(l)
	})

	return asm.NewFunc("entry", func(b *asm.Builder) {
		b.RegA8()
		b.StoreZero(asm.Size8, status)
		b.JumpSubroutine(idleLoop)
		b.Emit(inst.Instruction{Op: inst.RTS})
	})
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func writeWith(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}
